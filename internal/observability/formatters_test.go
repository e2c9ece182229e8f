package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() aggregation.Summary {
	return aggregation.AggregateSingle(&types.ValidationResult{
		FileName:     "brochure.pdf",
		QualityScore: 62,
		IssuesByCategory: map[types.Category][]types.Issue{
			types.CategoryFonts: {
				{ID: "i1", Type: "unembedded_fonts", Severity: types.SeverityHigh, Description: "Font Arial not embedded", AutoFixable: true},
			},
			types.CategoryColor: {
				{ID: "i2", Type: "rgb_colors", Severity: types.SeverityMedium, Description: "RGB colour in print job", AutoFixable: true},
			},
		},
	})
}

func TestPrintValidationSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidationSummary(sampleSummary())
	output := buf.String()

	assert.Contains(t, output, "PREFLIGHT SUMMARY")
	assert.Contains(t, output, "brochure.pdf")
	assert.Contains(t, output, "Score:    62")
	assert.Contains(t, output, "Issues:   2")
	assert.Contains(t, output, "fonts")
	assert.Contains(t, output, "color")
	assert.Contains(t, output, "Font Arial not embedded")
	assert.Contains(t, output, "Auto-fixable (2)")
}

func TestPrintValidationSummary_Clean(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidationSummary(aggregation.AggregateSingle(&types.ValidationResult{FileName: "clean.pdf"}))
	output := buf.String()

	assert.Contains(t, output, "No issues found")
	assert.NotContains(t, output, "By severity")
}

func TestPrintValidationSummary_TruncatesFixableList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var issues []types.Issue
	for i := 0; i < 8; i++ {
		issues = append(issues, types.Issue{ID: fmt.Sprintf("i%d", i), Type: "missing_bleed", Severity: types.SeverityLow, Description: fmt.Sprintf("issue %d", i), AutoFixable: true})
	}
	p.PrintValidationSummary(aggregation.AggregateSingle(&types.ValidationResult{
		IssuesByCategory: map[types.Category][]types.Issue{types.CategoryPrintProduction: issues},
	}))

	output := buf.String()
	assert.Contains(t, output, "issue 4")
	assert.NotContains(t, output, "issue 5")
	assert.Contains(t, output, "... and 3 more")
}

func TestPrintComplianceSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintComplianceSummary(aggregation.AggregateMultiStandard(types.MultiStandardResult{
		"PDF/A-1b": {Standard: "PDF/A-1b", IsCompliant: true},
		"PDF/UA-1": {Standard: "PDF/UA-1", Issues: []types.Issue{{ID: "u1", Type: "missing_language", Severity: types.SeverityMedium}}},
	}))
	output := buf.String()

	assert.Contains(t, output, "NOT COMPLIANT")
	assert.Contains(t, output, "✓ PDF/A-1b (0 issues)")
	assert.Contains(t, output, "✗ PDF/UA-1 (1 issues)")
	assert.Contains(t, output, "[medium] missing_language")
}

func TestPrintComplianceSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintComplianceSummary(aggregation.MultiStandardSummary{})

	assert.Empty(t, buf.String())
}

func TestPrintJob(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJob(types.Job{ID: "validate:p1", RemoteID: "p1", Kind: types.JobKindValidate, Status: types.JobStatusFailed, Progress: 40, Error: "Corrupt xref table"})
	output := buf.String()

	assert.Contains(t, output, "VALIDATE JOB")
	assert.Contains(t, output, "Progress: 40%")
	assert.Contains(t, output, "Corrupt xref table")
	assert.NotContains(t, output, "Result:")
}

func TestPrintFixPlan(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintFixPlan([]string{"add_bleed", "embed_fonts"}, []types.Issue{{ID: "i4", Type: "low_resolution_images"}})
	output := buf.String()

	assert.Contains(t, output, "Applying 2 fixes")
	assert.Contains(t, output, "embed_fonts")
	assert.Contains(t, output, "low_resolution_images (i4)")
}

func TestJobFinished(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.JobFinished(context.Background(), types.Job{ID: "fix:f1", RemoteID: "f1", Kind: types.JobKindFix, Status: types.JobStatusCompleted})
	p.JobFinished(context.Background(), types.Job{ID: "validate:p1", RemoteID: "p1", Kind: types.JobKindValidate, Status: types.JobStatusFailed, Error: "boom"})
	p.JobFinished(context.Background(), types.Job{ID: "ocr:o1", RemoteID: "o1", Kind: types.JobKindOCR, Status: types.JobStatusCancelled})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "fix job f1 completed")
	assert.Contains(t, lines[1], "validate job p1 failed: boom")
	assert.Contains(t, lines[2], "ocr job o1 cancelled")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 100))

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 60))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggerOptions{Format: "json"})

	logger.Debug("hidden")
	logger.Info("job.submitted", "job_id", "p1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "job.submitted", record["msg"])
	assert.Equal(t, "p1", record["job_id"])

	buf.Reset()
	verbose := NewLogger(&buf, LoggerOptions{Verbose: true, Quiet: true})
	verbose.Debug("shown", "k", "v")
	assert.Equal(t, "msg=shown k=v\n", buf.String())
}
