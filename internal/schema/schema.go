// Package schema reconciles the differing field sets of one resource kind
// into a single table with a canonical column order.
package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ppiankov/awsinventory/internal/record"
)

// ErrSchemaViolation signals a table whose records disagree with its field
// order. It is a programming error, never a recoverable condition.
var ErrSchemaViolation = errors.New("schema violation")

// Table is one resource kind's normalized record set.
type Table struct {
	Kind    string
	Fields  []string
	Records []record.Record
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.Records) }

// Has reports whether the table carries a field.
func (t Table) Has(name string) bool {
	return slices.Contains(t.Fields, name)
}

// Normalize computes the canonical field order for a kind's records and
// backfills every record to carry every field. Fixed fields keep their
// first-seen order, dynamic fields follow sorted ascending. Missing
// size/count fields become 0, other missing fields become null.
// Existing values are never changed.
func Normalize(kind string, records []record.Record) Table {
	order := FieldOrder(records)
	out := make([]record.Record, len(records))
	for i, r := range records {
		out[i] = r.Reorder(order, Default)
	}
	return Table{Kind: kind, Fields: order, Records: out}
}

// FieldOrder returns the canonical field order for a record set.
func FieldOrder(records []record.Record) []string {
	seen := make(map[string]struct{})
	var fixed, dynamic []string
	for _, r := range records {
		for _, name := range r.Fields() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if record.IsDynamic(name) {
				dynamic = append(dynamic, name)
			} else {
				fixed = append(fixed, name)
			}
		}
	}
	slices.Sort(dynamic)
	return append(fixed, dynamic...)
}

// Default is the backfill value for a missing field.
func Default(name string) record.Value {
	if record.IsMeasure(name) {
		return record.Number(0)
	}
	return record.Null()
}

// Merge concatenates record sets in the given order and normalizes the
// result as one table.
func Merge(kind string, sets ...[]record.Record) Table {
	var n int
	for _, s := range sets {
		n += len(s)
	}
	all := make([]record.Record, 0, n)
	for _, s := range sets {
		all = append(all, s...)
	}
	return Normalize(kind, all)
}

// Validate checks that every record carries exactly the table's fields in
// the table's order.
func (t Table) Validate() error {
	for i, r := range t.Records {
		fields := r.Fields()
		if len(fields) != len(t.Fields) {
			return fmt.Errorf("%w: %s record %d has %d fields, table has %d",
				ErrSchemaViolation, t.Kind, i, len(fields), len(t.Fields))
		}
		for j, name := range fields {
			if name != t.Fields[j] {
				return fmt.Errorf("%w: %s record %d field %d is %q, want %q",
					ErrSchemaViolation, t.Kind, i, j, name, t.Fields[j])
			}
		}
	}
	return nil
}
