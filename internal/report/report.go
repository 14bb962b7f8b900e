package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/schema"
)

// TimestampLayout stamps every artifact of one run.
const TimestampLayout = "2006-01-02_15-04-05"

// SummaryName is the artifact name of the summary table.
const SummaryName = "summary"

// Sink writes inventory artifacts. Tables and summary rows are written in
// the order and with the columns given. Returned strings are paths of
// files written; an empty path means the artifact lands in a file reported
// by Close.
type Sink interface {
	Name() string
	WriteTable(t schema.Table) (string, error)
	WriteSummary(rows []analyzer.SummaryRow) (string, error)
	Close() ([]string, error)
}

// Naming builds artifact paths: <dir>/<prefix>_<name>_<timestamp>.<ext>.
type Naming struct {
	Dir       string
	Prefix    string
	Timestamp string
}

// NewNaming names a run's artifacts after its only scope, or "multi" when
// it covers several.
func NewNaming(dir string, aliases []string, at time.Time) Naming {
	prefix := "multi"
	if len(aliases) == 1 && aliases[0] != "" {
		prefix = safeName(aliases[0])
	}
	return Naming{Dir: dir, Prefix: prefix, Timestamp: at.Format(TimestampLayout)}
}

// Path returns the artifact path for a name and extension.
func (n Naming) Path(name, ext string) string {
	return filepath.Join(n.Dir, fmt.Sprintf("%s_%s_%s.%s", n.Prefix, name, n.Timestamp, ext))
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}

// ArtifactError is one artifact a sink failed to write.
type ArtifactError struct {
	Sink     string
	Artifact string
	Err      error
}

func (e ArtifactError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Sink, e.Artifact, e.Err)
}

func (e ArtifactError) Unwrap() error { return e.Err }

// Result reports what an emission wrote and what failed.
type Result struct {
	Written  []string
	Failures []ArtifactError
}

// Err joins every failure, or returns nil.
func (r Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// AllFailed reports whether nothing at all was written.
func (r Result) AllFailed() bool {
	return len(r.Written) == 0 && len(r.Failures) > 0
}

// Emitter hands every artifact to every sink. A failure is recorded and
// never stops the remaining artifacts.
type Emitter struct {
	sinks []Sink
}

// NewEmitter creates an emitter over the given sinks.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{sinks: sinks}
}

// Emit writes the summary then every table, then closes each sink.
func (e *Emitter) Emit(tables []schema.Table, rows []analyzer.SummaryRow) Result {
	var res Result
	record := func(sink, artifact, path string, err error) {
		if err != nil {
			log.Warn().Err(err).Str("format", sink).Str("artifact", artifact).Msg("Failed to write artifact")
			res.Failures = append(res.Failures, ArtifactError{Sink: sink, Artifact: artifact, Err: err})
			return
		}
		if path != "" {
			res.Written = append(res.Written, path)
		}
	}

	for _, s := range e.sinks {
		path, err := s.WriteSummary(rows)
		record(s.Name(), SummaryName, path, err)

		for _, t := range tables {
			path, err := s.WriteTable(t)
			record(s.Name(), t.Kind, path, err)
		}

		paths, err := s.Close()
		for _, p := range paths {
			record(s.Name(), "close", p, nil)
		}
		if err != nil {
			record(s.Name(), "close", "", err)
		}
	}

	return res
}
