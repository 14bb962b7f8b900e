package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/schema"
)

const summarySheet = "Summary"

// XLSXSink writes one workbook: the Summary sheet first, then one sheet
// per kind. The workbook is saved on Close.
type XLSXSink struct {
	path string
	file *excelize.File
	bold int
	err  error
}

// NewXLSXSink creates a workbook sink.
func NewXLSXSink(naming Naming) *XLSXSink {
	s := &XLSXSink{path: naming.Path("inventory", "xlsx"), file: excelize.NewFile()}

	if err := s.file.SetSheetName("Sheet1", summarySheet); err != nil {
		s.err = err
		return s
	}
	s.bold, s.err = s.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	return s
}

// Name returns the format name.
func (s *XLSXSink) Name() string { return "xlsx" }

// WriteTable adds a sheet named after the kind.
func (s *XLSXSink) WriteTable(t schema.Table) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := s.file.NewSheet(t.Kind); err != nil {
		return "", fmt.Errorf("add sheet %s: %w", t.Kind, err)
	}

	header := make([]any, len(t.Fields))
	for i, f := range t.Fields {
		header[i] = f
	}
	if err := s.writeRow(t.Kind, 1, header, true); err != nil {
		return "", err
	}

	for i, r := range t.Records {
		row := make([]any, len(t.Fields))
		for j, f := range t.Fields {
			v, _ := r.Get(f)
			row[j] = v.Any()
		}
		if err := s.writeRow(t.Kind, i+2, row, false); err != nil {
			return "", err
		}
	}
	return "", nil
}

// WriteSummary fills the Summary sheet. Header rows are bold, blank rows
// stay empty.
func (s *XLSXSink) WriteSummary(rows []analyzer.SummaryRow) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	header := make([]any, len(analyzer.SummaryHeader))
	for i, h := range analyzer.SummaryHeader {
		header[i] = h
	}
	if err := s.writeRow(summarySheet, 1, header, true); err != nil {
		return "", err
	}

	for i, r := range rows {
		line := i + 2
		if r.Type == analyzer.RowBlank {
			continue
		}
		if err := s.writeRow(summarySheet, line, r.Values(), r.Type == analyzer.RowHeader); err != nil {
			return "", err
		}
	}
	return "", nil
}

// Close saves the workbook and reports its path.
func (s *XLSXSink) Close() ([]string, error) {
	defer func() { _ = s.file.Close() }()
	if s.err != nil {
		return nil, s.err
	}

	s.file.SetActiveSheet(0)
	if err := s.file.SaveAs(s.path); err != nil {
		return nil, fmt.Errorf("save %s: %w", s.path, err)
	}
	return []string{s.path}, nil
}

func (s *XLSXSink) writeRow(sheet string, line int, values []any, bold bool) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, line, err)
	}
	if bold {
		if err := s.file.SetRowStyle(sheet, line, line, s.bold); err != nil {
			return fmt.Errorf("style %s row %d: %w", sheet, line, err)
		}
	}
	return nil
}
