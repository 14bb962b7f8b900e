// Package analyzer rolls normalized inventory tables up into the
// hierarchical summary: global totals, global per-region rows, then per
// account totals with their per-region rows.
package analyzer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/awsinventory/internal/record"
	"github.com/ppiankov/awsinventory/internal/schema"
)

type tally struct {
	count int
	sums  [4]decimal.Decimal
}

func (t *tally) add(m [4]decimal.Decimal) {
	t.count++
	for i := range m {
		t.sums[i] = t.sums[i].Add(m[i])
	}
}

func (t tally) row(scope, kind, region string) SummaryRow {
	return SummaryRow{
		Type:   RowData,
		Scope:  scope,
		Kind:   kind,
		Region: region,
		Count:  t.count,
		GiB:    t.sums[0].Round(2).InexactFloat64(),
		TiB:    t.sums[1].Round(2).InexactFloat64(),
		GB:     t.sums[2].Round(2).InexactFloat64(),
		TB:     t.sums[3].Round(2).InexactFloat64(),
	}
}

// breakdown holds one kind's totals overall and per region.
type breakdown struct {
	total   tally
	regions map[string]*tally
}

func newBreakdown() *breakdown {
	return &breakdown{regions: make(map[string]*tally)}
}

func (b *breakdown) add(region string, m [4]decimal.Decimal) {
	b.total.add(m)
	if strings.TrimSpace(region) == "" {
		return
	}
	t, ok := b.regions[region]
	if !ok {
		t = &tally{}
		b.regions[region] = t
	}
	t.add(m)
}

func (b *breakdown) regionRows(scope, kind string) []SummaryRow {
	names := make([]string, 0, len(b.regions))
	for name := range b.regions {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([]SummaryRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, b.regions[name].row(scope, kind, name))
	}
	return rows
}

// Analyze produces the summary rows for the given tables. Scopes are
// listed in processing order, each account at most once, and every
// record's account_id must name one of them. Tables are summarized in the order given; kinds without records
// produce no rows. The only failure is a schema violation.
func Analyze(scopes []ScopeRef, tables []schema.Table) ([]SummaryRow, error) {
	scopeIdx := make(map[string]int, len(scopes))
	for i, s := range scopes {
		if prev, ok := scopeIdx[s.ID]; ok {
			return nil, fmt.Errorf("%w: scopes %q and %q share account %s",
				schema.ErrSchemaViolation, scopes[prev].Label(), s.Label(), s.ID)
		}
		scopeIdx[s.ID] = i
	}

	type kindStats struct {
		kind    string
		global  *breakdown
		byScope []*breakdown
	}

	var stats []kindStats
	for _, t := range tables {
		if t.Len() == 0 {
			continue
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}

		ks := kindStats{
			kind:    t.Kind,
			global:  newBreakdown(),
			byScope: make([]*breakdown, len(scopes)),
		}
		measure := measurer(t)
		for i, r := range t.Records {
			id := r.Text(record.FieldAccountID)
			si, ok := scopeIdx[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s record %d belongs to unknown account %q",
					schema.ErrSchemaViolation, t.Kind, i, id)
			}
			region := r.Text(record.FieldRegion)
			m := measure(r)
			ks.global.add(region, m)
			if ks.byScope[si] == nil {
				ks.byScope[si] = newBreakdown()
			}
			ks.byScope[si].add(region, m)
		}
		stats = append(stats, ks)
	}

	if len(stats) == 0 {
		return nil, nil
	}

	var rows []SummaryRow
	for _, ks := range stats {
		rows = append(rows, ks.global.total.row(All, ks.kind, All))
	}
	rows = append(rows, SummaryRow{Type: RowBlank})

	for _, ks := range stats {
		rows = append(rows, ks.global.regionRows(All, ks.kind)...)
	}

	rows = append(rows, SummaryRow{Type: RowHeader, Scope: SectionCaption})
	for si, s := range scopes {
		label := s.Label()
		rows = append(rows, SummaryRow{Type: RowHeader, Scope: label})
		for _, ks := range stats {
			b := ks.byScope[si]
			if b == nil {
				continue
			}
			rows = append(rows, b.total.row(label, ks.kind, All))
			rows = append(rows, b.regionRows(label, ks.kind)...)
		}
		rows = append(rows, SummaryRow{Type: RowBlank})
	}

	return rows, nil
}

// measurer returns the per-unit capacity of a record. A table that carries
// the fixed size_<unit> field uses it, otherwise the sum of every
// class:*_<unit> field is taken.
func measurer(t schema.Table) func(record.Record) [4]decimal.Decimal {
	var fields [4][]string
	for i, u := range record.Units {
		fixed := record.SizeField(u)
		if t.Has(fixed) {
			fields[i] = []string{fixed}
			continue
		}
		for _, name := range t.Fields {
			if record.IsClassField(name, u) {
				fields[i] = append(fields[i], name)
			}
		}
	}

	return func(r record.Record) [4]decimal.Decimal {
		var m [4]decimal.Decimal
		for i, names := range fields {
			for _, name := range names {
				m[i] = m[i].Add(decimal.NewFromFloat(r.Float(name)))
			}
		}
		return m
	}
}

// KindTotals returns the global total row of every kind.
func KindTotals(rows []SummaryRow) []SummaryRow {
	var out []SummaryRow
	for _, r := range rows {
		if r.Type == RowData && r.Scope == All && r.Region == All {
			out = append(out, r)
		}
	}
	return out
}
