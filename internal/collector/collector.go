package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/awsinventory/internal/record"
	"github.com/ppiankov/awsinventory/internal/scope"
)

// ErrNoScopes is returned when no scope could be authenticated.
var ErrNoScopes = errors.New("no authenticated scopes")

const (
	defaultConcurrency = 4
	defaultCallTimeout = 2 * time.Minute
)

// Enumerator lists one resource kind in one region of one account.
type Enumerator interface {
	Kind() string
	Global() bool
	Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error)
}

// RegionLister discovers the regions enabled for an account.
type RegionLister interface {
	ListRegions(ctx context.Context, cfg awssdk.Config) ([]string, error)
}

// Failure is one (region, kind) call that yielded nothing.
type Failure struct {
	Scope  string
	Region string
	Kind   string
	Err    error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s/%s: %v", f.Scope, f.Region, f.Kind, f.Err)
}

// ScopeContext holds everything collected for one scope. It is owned by a
// single collection task until Collect returns.
type ScopeContext struct {
	Scope    scope.Scope
	Regions  []string
	Records  map[string][]record.Record
	Failures []Failure
}

func newScopeContext(s scope.Scope) *ScopeContext {
	return &ScopeContext{Scope: s, Records: make(map[string][]record.Record)}
}

// Count returns the number of records collected for a kind.
func (sc *ScopeContext) Count(kind string) int {
	return len(sc.Records[kind])
}

// Config configures a Collector.
type Config struct {
	// Regions restricts collection; empty means every enabled region.
	Regions     []string
	Concurrency int
	CallTimeout time.Duration
}

// Collector fans out enumeration across scopes.
type Collector struct {
	enumerators []Enumerator
	lister      RegionLister
	cfg         Config
	progress    *Progress
}

// New creates a collector. Defaults: 4 concurrent scopes, 2m per call.
func New(enumerators []Enumerator, lister RegionLister, cfg Config) *Collector {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Collector{
		enumerators: enumerators,
		lister:      lister,
		cfg:         cfg,
		progress:    &Progress{},
	}
}

// Progress returns the live progress counters.
func (c *Collector) Progress() *Progress {
	return c.progress
}

// Collect enumerates every scope the sequence yields and returns their
// contexts ordered by scope index. It returns only after every scope task
// has finished. Failures inside a scope never abort other scopes.
func (c *Collector) Collect(ctx context.Context, scopes iter.Seq[scope.Scope]) ([]*ScopeContext, error) {
	var (
		mu      sync.Mutex
		results []*ScopeContext
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for s := range scopes {
		c.progress.scopes.planned.Add(1)
		g.Go(func() error {
			sc := c.collectScope(gctx, s)
			c.progress.scopes.done.Add(1)
			c.progress.log(s.Label())

			mu.Lock()
			results = append(results, sc)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collection interrupted: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoScopes
	}

	slices.SortFunc(results, func(a, b *ScopeContext) int {
		return a.Scope.Index - b.Scope.Index
	})
	return results, nil
}

// collectScope runs every enumerator over the scope's regions, in order.
func (c *Collector) collectScope(ctx context.Context, s scope.Scope) *ScopeContext {
	sc := newScopeContext(s)
	sc.Regions = c.regionsFor(ctx, s)

	home := s.Config.Region
	if home == "" || !slices.Contains(sc.Regions, home) {
		home = sc.Regions[0]
	}

	for _, e := range c.enumerators {
		regions := sc.Regions
		if e.Global() {
			regions = []string{home}
		}
		c.progress.calls.planned.Add(int64(len(regions)))

		for _, region := range regions {
			if ctx.Err() != nil {
				return sc
			}
			records, err := c.call(ctx, e, s, region)
			c.progress.calls.done.Add(1)
			if err != nil {
				sc.Failures = append(sc.Failures, Failure{Scope: s.Label(), Region: region, Kind: e.Kind(), Err: err})
				log.Warn().Err(err).
					Str("scope", s.Label()).
					Str("region", region).
					Str("type", e.Kind()).
					Msg("Enumeration failed, counting zero items")
				continue
			}

			for i := range records {
				stamp(&records[i], s, region)
			}
			sc.Records[e.Kind()] = append(sc.Records[e.Kind()], records...)
			c.progress.items.Add(int64(len(records)))
		}
	}

	log.Info().
		Str("scope", s.Label()).
		Int("regions", len(sc.Regions)).
		Int("failures", len(sc.Failures)).
		Msg("Scope collected")
	return sc
}

func (c *Collector) call(ctx context.Context, e Enumerator, s scope.Scope, region string) ([]record.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	log.Debug().Str("scope", s.Label()).Str("region", region).Str("type", e.Kind()).Msg("Enumerating")
	return e.Enumerate(callCtx, s.Config, region)
}

func (c *Collector) regionsFor(ctx context.Context, s scope.Scope) []string {
	if len(c.cfg.Regions) > 0 {
		return c.cfg.Regions
	}

	fallback := s.Config.Region
	if fallback == "" {
		fallback = "us-east-1"
	}
	if c.lister == nil {
		return []string{fallback}
	}

	regions, err := c.lister.ListRegions(ctx, s.Config)
	if err != nil || len(regions) == 0 {
		log.Warn().Err(err).Str("scope", s.Label()).Str("region", fallback).
			Msg("Region discovery failed, using the default region only")
		return []string{fallback}
	}
	return regions
}

// stamp writes the scope identity first, then the region unless the
// enumerator set one itself.
func stamp(r *record.Record, s scope.Scope, region string) {
	names := []string{record.FieldAccountID, record.FieldAccountAlias}
	values := []record.Value{record.String(s.ID), record.StringOrNull(s.Alias)}

	if v, ok := r.Get(record.FieldRegion); ok {
		values = append(values, v)
	} else {
		values = append(values, record.String(region))
	}
	names = append(names, record.FieldRegion)

	*r = r.Prepend(names, values)
}
