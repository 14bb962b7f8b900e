package analyzer

import (
	"strconv"

	"github.com/ppiankov/awsinventory/internal/scope"
)

// All labels a row aggregated across a whole dimension.
const All = "All"

// SectionCaption heads the per-account part of the summary.
const SectionCaption = "Per-account breakdown"

// RowType distinguishes data rows from the rows that only shape the report.
type RowType uint8

const (
	RowData RowType = iota
	RowHeader
	RowBlank
)

// SummaryRow is one line of the hierarchical summary. Scope and Region hold
// All for aggregates. Header rows carry their caption in Scope. Blank rows
// carry nothing.
type SummaryRow struct {
	Type   RowType
	Scope  string
	Kind   string
	Region string
	Count  int
	GiB    float64
	TiB    float64
	GB     float64
	TB     float64
}

// SummaryHeader is the column header of the summary table.
var SummaryHeader = []string{
	"Account", "Resource Type", "Region", "Count",
	"Size (GiB)", "Size (TiB)", "Size (GB)", "Size (TB)",
}

// Cells renders the row in SummaryHeader order. Header rows fill only the
// first cell, blank rows fill none.
func (r SummaryRow) Cells() []string {
	switch r.Type {
	case RowBlank:
		return make([]string, len(SummaryHeader))
	case RowHeader:
		cells := make([]string, len(SummaryHeader))
		cells[0] = r.Scope
		return cells
	}
	return []string{
		r.Scope,
		r.Kind,
		r.Region,
		strconv.Itoa(r.Count),
		formatSize(r.GiB),
		formatSize(r.TiB),
		formatSize(r.GB),
		formatSize(r.TB),
	}
}

// Values renders the row in SummaryHeader order with numbers kept numeric.
// Cells that carry nothing are nil.
func (r SummaryRow) Values() []any {
	out := make([]any, len(SummaryHeader))
	switch r.Type {
	case RowBlank:
		return out
	case RowHeader:
		out[0] = r.Scope
		return out
	}
	out[0], out[1], out[2] = r.Scope, r.Kind, r.Region
	out[3], out[4], out[5], out[6], out[7] = r.Count, r.GiB, r.TiB, r.GB, r.TB
	return out
}

func formatSize(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// ScopeRef names one processed scope.
type ScopeRef struct {
	ID    string
	Alias string
}

// Label is the display name of the scope.
func (s ScopeRef) Label() string {
	return scope.Label(s.ID, s.Alias)
}
