package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/schema"
)

// CSVSink writes one CSV file per kind plus one for the summary.
type CSVSink struct {
	naming Naming
}

// NewCSVSink creates a CSV sink.
func NewCSVSink(naming Naming) *CSVSink {
	return &CSVSink{naming: naming}
}

// Name returns the format name.
func (s *CSVSink) Name() string { return "csv" }

// WriteTable writes the table with its field order as the header row.
// Null values are empty cells.
func (s *CSVSink) WriteTable(t schema.Table) (string, error) {
	rows := make([][]string, 0, len(t.Records)+1)
	rows = append(rows, t.Fields)
	for _, r := range t.Records {
		row := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			v, _ := r.Get(f)
			row[i] = v.String()
		}
		rows = append(rows, row)
	}
	path := s.naming.Path(t.Kind, "csv")
	return path, writeCSV(path, rows)
}

// WriteSummary writes the summary rows under SummaryHeader.
func (s *CSVSink) WriteSummary(rows []analyzer.SummaryRow) (string, error) {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, analyzer.SummaryHeader)
	for _, r := range rows {
		out = append(out, r.Cells())
	}
	path := s.naming.Path(SummaryName, "csv")
	return path, writeCSV(path, out)
}

// Close is a no-op: every file is complete when written.
func (s *CSVSink) Close() ([]string, error) { return nil, nil }

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
