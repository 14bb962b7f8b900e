package collector

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type counter struct {
	planned atomic.Int64
	done    atomic.Int64
}

// Progress counts work as scopes are collected. Readings are advisory:
// planned totals grow while scopes are still being authenticated.
type Progress struct {
	scopes counter
	calls  counter
	items  atomic.Int64
}

// Snapshot is a point-in-time reading of Progress.
type Snapshot struct {
	ScopesDone, ScopesPlanned int64
	CallsDone, CallsPlanned   int64
	Items                     int64
}

// Snapshot reads the counters.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		ScopesDone:    p.scopes.done.Load(),
		ScopesPlanned: p.scopes.planned.Load(),
		CallsDone:     p.calls.done.Load(),
		CallsPlanned:  p.calls.planned.Load(),
		Items:         p.items.Load(),
	}
}

func (p *Progress) log(finished string) {
	s := p.Snapshot()
	log.Info().
		Str("finished", finished).
		Int64("scopes_done", s.ScopesDone).
		Int64("scopes_planned", s.ScopesPlanned).
		Int64("calls", s.CallsDone).
		Int64("items", s.Items).
		Msg("Progress")
}
