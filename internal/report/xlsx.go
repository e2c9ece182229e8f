// Package report exports preflight and compliance results as XLSX workbooks.
package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	SheetSummary    = "Summary"
	SheetIssues     = "Issues"
	SheetCompliance = "Compliance"
)

var issueHeaders = []string{
	"Issue ID",
	"Category",
	"Severity",
	"Type",
	"Page",
	"Description",
	"Auto-fixable",
	"Fix",
}

var complianceHeaders = []string{
	"Standard",
	"Compliant",
	"Issue ID",
	"Severity",
	"Type",
	"Page",
	"Description",
}

// Exporter produces XLSX bytes for preflight results.
type Exporter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, now: time.Now}
}

// Input is everything a report can contain. Compliance may be nil.
type Input struct {
	Summary    aggregation.Summary
	Compliance types.MultiStandardResult
}

// Workbook builds the report. The Summary sheet is always present; Issues lists
// every issue in category order; Compliance is added when verdicts are given.
func (e *Exporter) Workbook(in Input) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with Sheet1; rename it rather than leave it empty
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	if err := e.writeSummary(f, in); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := e.writeIssues(f, in.Summary); err != nil {
		return nil, fmt.Errorf("issues sheet: %w", err)
	}
	if len(in.Compliance) > 0 {
		if err := e.writeCompliance(f, in.Compliance); err != nil {
			return nil, fmt.Errorf("compliance sheet: %w", err)
		}
	}

	index, _ := f.GetSheetIndex(SheetSummary)
	f.SetActiveSheet(index)
	return f, nil
}

// XLSX returns the report as workbook bytes.
func (e *Exporter) XLSX(in Input) ([]byte, error) {
	start := e.now()

	f, err := e.Workbook(in)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("report.xlsx.ok",
		"file", in.Summary.FileName,
		"issues", in.Summary.TotalIssues,
		"standards", len(in.Compliance),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// SaveXLSX writes the report to path.
func (e *Exporter) SaveXLSX(in Input, path string) error {
	f, err := e.Workbook(in)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) writeSummary(f *excelize.File, in Input) error {
	s := in.Summary
	rows := [][]any{
		{"File", s.FileName},
		{"Generated", e.now().UTC().Format(time.RFC3339)},
		{"Quality score", s.QualityScore},
		{"Total issues", s.TotalIssues},
		{"Auto-fixable", len(s.FixableIssues)},
		{},
		{"Severity", "Count"},
	}
	for _, sev := range types.Severities {
		rows = append(rows, []any{string(sev), s.BySeverity[sev]})
	}
	rows = append(rows, []any{}, []any{"Category", "Count"})
	for _, c := range types.Categories {
		rows = append(rows, []any{string(c), s.CategoryCount(c)})
	}
	rows = append(rows, []any{}, []any{"Fix bundle", "Fully fixable"})
	all := allIssues(s)
	for _, b := range fixes.Bundles {
		rows = append(rows, []any{string(b), fixes.IsBundleFullyFixable(all, b)})
	}
	if len(in.Compliance) > 0 {
		rows = append(rows, []any{}, []any{"Overall compliant", in.Compliance.IsCompliant()})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 22)
	_ = f.SetColWidth(SheetSummary, "B", "B", 24)
	return nil
}

func (e *Exporter) writeIssues(f *excelize.File, s aggregation.Summary) error {
	if _, err := f.NewSheet(SheetIssues); err != nil {
		return err
	}
	if err := writeHeader(f, SheetIssues, issueHeaders); err != nil {
		return err
	}

	row := 2
	for _, issue := range allIssues(s) {
		fix, _ := fixes.FixForIssueType(issue.Type)
		values := []any{
			issue.ID,
			string(issue.Category),
			string(issue.Severity.OrInfo()),
			issue.Type,
			pageValue(issue.Page),
			truncate(issue.Description, 140),
			issue.AutoFixable,
			fix,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetIssues, cell, &values); err != nil {
			return err
		}
		row++
	}

	_ = f.SetColWidth(SheetIssues, "A", "A", 14)
	_ = f.SetColWidth(SheetIssues, "B", "D", 20)
	_ = f.SetColWidth(SheetIssues, "E", "E", 8)
	_ = f.SetColWidth(SheetIssues, "F", "F", 60)
	_ = f.SetColWidth(SheetIssues, "G", "H", 16)
	return f.AutoFilter(SheetIssues, fmt.Sprintf("A1:H%d", max(row-1, 1)), nil)
}

func (e *Exporter) writeCompliance(f *excelize.File, m types.MultiStandardResult) error {
	if _, err := f.NewSheet(SheetCompliance); err != nil {
		return err
	}
	if err := writeHeader(f, SheetCompliance, complianceHeaders); err != nil {
		return err
	}

	row := 2
	for _, standard := range m.Standards() {
		result := m[standard]
		if len(result.Issues) == 0 {
			values := []any{standard, result.IsCompliant}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetCompliance, cell, &values); err != nil {
				return err
			}
			row++
			continue
		}
		for _, issue := range result.Issues {
			values := []any{
				standard,
				result.IsCompliant,
				issue.ID,
				string(issue.Severity.OrInfo()),
				issue.Type,
				pageValue(issue.Page),
				truncate(issue.Description, 140),
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetCompliance, cell, &values); err != nil {
				return err
			}
			row++
		}
	}

	_ = f.SetColWidth(SheetCompliance, "A", "A", 16)
	_ = f.SetColWidth(SheetCompliance, "G", "G", 60)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func allIssues(s aggregation.Summary) []types.Issue {
	var all []types.Issue
	for _, c := range types.OrderedCategories(s.ByCategory) {
		all = append(all, s.ByCategory[c]...)
	}
	return all
}

func pageValue(page *int) any {
	if page == nil {
		return ""
	}
	return *page
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
