package report

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testExporter() *Exporter {
	e := NewExporter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func intPtr(v int) *int { return &v }

func sampleSummary() aggregation.Summary {
	return aggregation.AggregateSingle(&types.ValidationResult{
		FileName:    "brochure.pdf",
		TotalIssues: 3,
		IssuesByCategory: map[types.Category][]types.Issue{
			types.CategoryFonts: {
				{ID: "i1", Type: "unembedded_fonts", Category: types.CategoryFonts, Severity: types.SeverityHigh, Page: intPtr(2), Description: "Font Arial not embedded", AutoFixable: true},
			},
			types.CategoryStructural: {
				{ID: "i2", Type: "broken_xref", Category: types.CategoryStructural, Severity: types.SeverityHigh, AutoFixable: true},
			},
			types.CategoryImage: {
				{ID: "i3", Type: "oversized_images", Category: types.CategoryImage, Severity: types.SeverityMedium, Page: intPtr(1)},
			},
		},
	})
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis)
	require.NoError(t, err)
	return v
}

func TestXLSX_SummaryAndIssues(t *testing.T) {
	data, err := testExporter().XLSX(Input{Summary: sampleSummary()})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SheetSummary, SheetIssues}, f.GetSheetList())

	assert.Equal(t, "brochure.pdf", cell(t, f, SheetSummary, "B1"))
	assert.Equal(t, "2026-03-01T12:00:00Z", cell(t, f, SheetSummary, "B2"))
	assert.Equal(t, "3", cell(t, f, SheetSummary, "B4"))
	assert.Equal(t, "2", cell(t, f, SheetSummary, "B5"))

	// severity block starts at row 7
	assert.Equal(t, "Severity", cell(t, f, SheetSummary, "A7"))
	assert.Equal(t, "high", cell(t, f, SheetSummary, "A8"))
	assert.Equal(t, "2", cell(t, f, SheetSummary, "B8"))
	assert.Equal(t, "medium", cell(t, f, SheetSummary, "A9"))
	assert.Equal(t, "1", cell(t, f, SheetSummary, "B9"))
	assert.Equal(t, "0", cell(t, f, SheetSummary, "B10"))

	rows, err := f.GetRows(SheetIssues)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, issueHeaders, rows[0])

	// canonical category order: structural, fonts, image
	assert.Equal(t, "i2", rows[1][0])
	assert.Equal(t, "i1", rows[2][0])
	assert.Equal(t, "2", rows[2][4])
	assert.Equal(t, "embed_fonts", rows[2][7])
	assert.Equal(t, "i3", rows[3][0])
	assert.Equal(t, "compress_images", rows[3][7])
}

func TestXLSX_ComplianceSheet(t *testing.T) {
	compliance := types.MultiStandardResult{
		"PDF/UA-1": {
			Standard: "PDF/UA-1",
			Issues: []types.Issue{
				{ID: "ua-1", Type: "missing_language", Severity: types.SeverityMedium, Page: intPtr(1), Description: "No document language"},
				{ID: "ua-2", Type: "untagged_pdf", Severity: types.SeverityHigh},
			},
		},
		"PDF/A-1b": {Standard: "PDF/A-1b", IsCompliant: true},
	}

	data, err := testExporter().XLSX(Input{Summary: sampleSummary(), Compliance: compliance})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SheetSummary, SheetIssues, SheetCompliance}, f.GetSheetList())

	rows, err := f.GetRows(SheetCompliance)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, complianceHeaders, rows[0])
	assert.Equal(t, "PDF/A-1b", rows[1][0])
	assert.Len(t, rows[1], 2, "a compliant standard gets a single verdict row")
	assert.Equal(t, "PDF/UA-1", rows[2][0])
	assert.Equal(t, "ua-1", rows[2][2])
	assert.Equal(t, "untagged_pdf", rows[3][4])
}

func TestXLSX_EmptySummary(t *testing.T) {
	data, err := testExporter().XLSX(Input{Summary: aggregation.AggregateSingle(nil)})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	rows, err := f.GetRows(SheetIssues)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, testExporter().SaveXLSX(Input{Summary: sampleSummary()}, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Contains(t, f.GetSheetList(), SheetIssues)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 0))
}
