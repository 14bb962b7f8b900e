package commands

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/aws"
	"github.com/ppiankov/awsinventory/internal/collector"
	"github.com/ppiankov/awsinventory/internal/config"
	"github.com/ppiankov/awsinventory/internal/record"
	"github.com/ppiankov/awsinventory/internal/report"
	"github.com/ppiankov/awsinventory/internal/schema"
)

// enhanceError wraps an error with context and suggestions for common AWS issues.
func enhanceError(action string, err error) error {
	if hint := aws.Hint(err); hint != "" {
		return fmt.Errorf("%s: %w\n  hint: %s", action, err, hint)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// computeTargetHash generates a SHA256 hash over the inventoried accounts.
func computeTargetHash(accounts []string) string {
	sorted := slices.Clone(accounts)
	slices.Sort(sorted)
	input := fmt.Sprintf("accounts:%s", strings.Join(sorted, ","))
	h := sha256.Sum256([]byte(input))
	return fmt.Sprintf("sha256:%x", h)
}

// metricOptions turns the config file's metric overrides into enumerator
// options.
func metricOptions(metrics map[string]config.MetricWindow) (aws.Options, error) {
	opts := aws.Options{Metrics: make(map[string]aws.Window, len(metrics))}
	for kind, m := range metrics {
		if !slices.Contains(aws.AllKinds, kind) {
			return aws.Options{}, fmt.Errorf("metrics: unknown resource type %q", kind)
		}
		period, window, err := m.Durations()
		if err != nil {
			return aws.Options{}, fmt.Errorf("metrics.%s: %w", kind, err)
		}
		opts.Metrics[kind] = aws.Window{Stat: m.Stat, Period: period, Lookback: window}
	}
	return opts, nil
}

func collectorEnumerators(enums []aws.Enumerator) []collector.Enumerator {
	out := make([]collector.Enumerator, len(enums))
	for i, e := range enums {
		out[i] = e
	}
	return out
}

// buildTables merges every scope's records into one normalized table per
// kind, in kind order then scope order.
func buildTables(kinds []string, scopes []*collector.ScopeContext) []schema.Table {
	tables := make([]schema.Table, 0, len(kinds))
	for _, kind := range kinds {
		sets := make([][]record.Record, 0, len(scopes))
		for _, sc := range scopes {
			sets = append(sets, sc.Records[kind])
		}
		tables = append(tables, schema.Merge(kind, sets...))
	}
	return tables
}

func scopeRefs(scopes []*collector.ScopeContext) []analyzer.ScopeRef {
	refs := make([]analyzer.ScopeRef, len(scopes))
	for i, sc := range scopes {
		refs[i] = analyzer.ScopeRef{ID: sc.Scope.ID, Alias: sc.Scope.Alias}
	}
	return refs
}

func nonEmpty(tables []schema.Table) []schema.Table {
	var out []schema.Table
	for _, t := range tables {
		if t.Len() > 0 {
			out = append(out, t)
		}
	}
	return out
}

var validFormats = []string{"csv", "xlsx"}

func parseFormats(formats []string) ([]string, error) {
	var out []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || slices.Contains(out, f) {
			continue
		}
		if !slices.Contains(validFormats, f) {
			return nil, fmt.Errorf("unsupported format: %s (use %s)", f, strings.Join(validFormats, " or "))
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no output format selected")
	}
	return out, nil
}

func buildSinks(formats []string, naming report.Naming) []report.Sink {
	sinks := make([]report.Sink, 0, len(formats))
	for _, f := range formats {
		switch f {
		case "csv":
			sinks = append(sinks, report.NewCSVSink(naming))
		case "xlsx":
			sinks = append(sinks, report.NewXLSXSink(naming))
		}
	}
	return sinks
}

func kindTotals(rows []analyzer.SummaryRow) []report.KindTotal {
	totals := analyzer.KindTotals(rows)
	out := make([]report.KindTotal, len(totals))
	for i, r := range totals {
		out[i] = report.KindTotal{Type: r.Kind, Count: r.Count, SizeGiB: r.GiB, SizeTiB: r.TiB}
	}
	return out
}
