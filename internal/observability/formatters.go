// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// PrintValidationSummary outputs severity counts, per-category counts and the
// first few auto-fixable issues of a preflight run.
func (p *Printer) PrintValidationSummary(s aggregation.Summary) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("File:     %s\n", s.FileName))
	sb.WriteString(fmt.Sprintf("Score:    %.0f\n", s.QualityScore))
	sb.WriteString(fmt.Sprintf("Issues:   %d\n", s.TotalIssues))

	if s.TotalIssues == 0 {
		sb.WriteString("\n✅ No issues found")
		p.printBox("PREFLIGHT SUMMARY", sb.String())
		return
	}

	sb.WriteString("\nBy severity:\n")
	for _, sev := range types.Severities {
		sb.WriteString(fmt.Sprintf("  %-8s %d\n", sev, s.BySeverity[sev]))
	}

	sb.WriteString("\nBy category:\n")
	for _, c := range s.Categories() {
		sb.WriteString(fmt.Sprintf("  %-18s %d\n", c, s.CategoryCount(c)))
	}

	if len(s.FixableIssues) > 0 {
		sb.WriteString(fmt.Sprintf("\nAuto-fixable (%d):\n", len(s.FixableIssues)))
		count := min(len(s.FixableIssues), maxItemsToShow)
		for i := 0; i < count; i++ {
			issue := s.FixableIssues[i]
			sb.WriteString(fmt.Sprintf("  • %s\n", shorten(issue.Description, 45)))
		}
		if len(s.FixableIssues) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(s.FixableIssues)-maxItemsToShow))
		}
	}

	p.printBox("PREFLIGHT SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintComplianceSummary outputs the verdict for every standard of a
// multi-standard run.
func (p *Printer) PrintComplianceSummary(m aggregation.MultiStandardSummary) {
	if len(m.Standards) == 0 {
		return
	}

	var sb strings.Builder
	verdict := "❌ NOT COMPLIANT"
	if m.OverallCompliant {
		verdict = "✅ COMPLIANT"
	}
	sb.WriteString(fmt.Sprintf("Overall: %s\n\n", verdict))

	for i, standard := range m.Standards {
		issues := m.PerStandard[standard]
		mark := "✓"
		if len(issues) > 0 {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%d issues)\n", mark, standard, len(issues)))
		count := min(len(issues), 3)
		for j := 0; j < count; j++ {
			sb.WriteString(fmt.Sprintf("    [%s] %s\n", issues[j].Severity.OrInfo(), issues[j].Type))
		}
		if len(issues) > 3 {
			sb.WriteString(fmt.Sprintf("    ... and %d more\n", len(issues)-3))
		}
		if i < len(m.Standards)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("COMPLIANCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJob outputs the state of a single job.
func (p *Printer) PrintJob(job types.Job) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.RemoteID))
	sb.WriteString(fmt.Sprintf("Kind:     %s\n", job.Kind))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Progress: %d%%", job.Progress))
	if job.ResultID != "" {
		sb.WriteString(fmt.Sprintf("\nResult:   %s", job.ResultID))
	}
	if job.DownloadURL != "" {
		sb.WriteString(fmt.Sprintf("\nDownload: %s", job.DownloadURL))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError:    %s", job.Error))
	}

	p.printBox(strings.ToUpper(string(job.Kind))+" JOB", sb.String())
}

// PrintFixPlan outputs the fix operations about to be submitted and the
// selected issues no fix covers.
func (p *Printer) PrintFixPlan(fixTypes []string, unmapped []types.Issue) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Applying %d fixes:\n", len(fixTypes)))
	for _, f := range fixTypes {
		sb.WriteString(fmt.Sprintf("  • %s\n", f))
	}

	if len(unmapped) > 0 {
		sb.WriteString(fmt.Sprintf("\nNo automatic fix for %d issues:\n", len(unmapped)))
		count := min(len(unmapped), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s (%s)\n", unmapped[i].Type, unmapped[i].ID))
		}
		if len(unmapped) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(unmapped)-maxItemsToShow))
		}
	}

	p.printBox("FIX PLAN", strings.TrimSuffix(sb.String(), "\n"))
}

// JobFinished prints a one-line notice when a job reaches a terminal state.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) JobFinished(_ context.Context, job types.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch job.Status {
	case types.JobStatusCompleted:
		fmt.Fprintf(p.out, "✅ %s job %s completed\n", job.Kind, job.RemoteID)
	case types.JobStatusFailed:
		fmt.Fprintf(p.out, "❌ %s job %s failed: %s\n", job.Kind, job.RemoteID, job.Error)
	default:
		fmt.Fprintf(p.out, "⏹ %s job %s %s\n", job.Kind, job.RemoteID, job.Status)
	}
}
