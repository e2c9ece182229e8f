package aggregation

import (
	"fmt"
	"strings"

	"github.com/jonathan/preflight-agent/internal/types"
)

// NormalizeSeverity maps a validator's native severity or impact label onto the
// canonical scale. Anything unrecognised becomes info.
func NormalizeSeverity(label string) types.Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high", "critical", "error", "serious", "fatal":
		return types.SeverityHigh
	case "medium", "warning", "moderate":
		return types.SeverityMedium
	case "low", "minor":
		return types.SeverityLow
	}
	return types.SeverityInfo
}

// PDFARuleFailure is one failed rule in a PDF/A validation report.
type PDFARuleFailure struct {
	Clause      string `json:"clause"`
	TestNumber  int    `json:"testNumber"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Page        *int   `json:"page,omitempty"`
}

// PDFAReport is the native report of a PDF/A validator for one conformance level.
type PDFAReport struct {
	Profile     string            `json:"profile"`
	IsCompliant bool              `json:"isCompliant"`
	Failures    []PDFARuleFailure `json:"failures"`
}

// pdfaClauseCategories maps ISO 19005 clause prefixes onto issue categories.
var pdfaClauseCategories = []struct {
	prefix   string
	category types.Category
	issue    string
}{
	{"6.1", types.CategoryStructural, "structural_errors"},
	{"6.2.2", types.CategoryColor, "missing_output_intent"},
	{"6.2.3", types.CategoryColor, "missing_output_intent"},
	{"6.2.4", types.CategoryColor, "rgb_colors"},
	{"6.2.8", types.CategoryImage, "rgb_images"},
	{"6.2.9", types.CategoryColor, "transparency"},
	{"6.2.10", types.CategoryColor, "transparency"},
	{"6.2.11", types.CategoryFonts, "unembedded_fonts"},
	{"6.3", types.CategoryFonts, "unembedded_fonts"},
	{"6.4", types.CategoryColor, "transparency"},
	{"6.6", types.CategoryStructural, "javascript_present"},
	{"6.7", types.CategoryStructural, "missing_metadata"},
	{"6.8", types.CategoryCompliance, "missing_tags"},
}

func classifyPDFAClause(clause string) (types.Category, string) {
	for _, rule := range pdfaClauseCategories {
		if clause == rule.prefix || strings.HasPrefix(clause, rule.prefix+".") {
			return rule.category, rule.issue
		}
	}
	return types.CategoryCompliance, "pdfa_violation"
}

// NormalizePDFA converts a PDF/A validator report into a ComplianceResult.
// Failures without a severity are treated as errors, since PDF/A rules are mandatory.
func NormalizePDFA(report PDFAReport) types.ComplianceResult {
	result := types.ComplianceResult{
		Standard:    report.Profile,
		IsCompliant: report.IsCompliant,
		Issues:      make([]types.Issue, 0, len(report.Failures)),
	}
	for i, failure := range report.Failures {
		category, issueType := classifyPDFAClause(failure.Clause)
		severity := failure.Severity
		if severity == "" {
			severity = "error"
		}
		result.Issues = append(result.Issues, types.Issue{
			ID:          fmt.Sprintf("pdfa-%s-%d-%d", failure.Clause, failure.TestNumber, i),
			Type:        issueType,
			Category:    category,
			Severity:    NormalizeSeverity(severity),
			Description: failure.Description,
			Page:        failure.Page,
			AutoFixable: issueType != "pdfa_violation",
		})
	}
	return result
}

// MatterhornFailure is one failed Matterhorn Protocol condition in a PDF/UA report.
type MatterhornFailure struct {
	Checkpoint  string `json:"checkpoint"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Page        *int   `json:"page,omitempty"`
}

// PDFUAReport is the native report of a PDF/UA validator.
type PDFUAReport struct {
	Standard    string              `json:"standard"`
	IsCompliant bool                `json:"isCompliant"`
	Failures    []MatterhornFailure `json:"failures"`
}

// matterhornCheckpoints maps the checkpoint number (the part before the dash) onto
// an issue type. Checkpoints not listed here are reported but not auto-fixable.
var matterhornCheckpoints = map[string]struct {
	category types.Category
	issue    string
	fixable  bool
}{
	"01": {types.CategoryCompliance, "untagged_pdf", true},
	"06": {types.CategoryStructural, "missing_metadata", true},
	"07": {types.CategoryCompliance, "missing_title", true},
	"11": {types.CategoryCompliance, "missing_language", true},
	"31": {types.CategoryFonts, "unembedded_fonts", true},
}

// NormalizePDFUA converts a PDF/UA (Matterhorn Protocol) report into a ComplianceResult.
func NormalizePDFUA(report PDFUAReport) types.ComplianceResult {
	standard := report.Standard
	if standard == "" {
		standard = "PDF/UA-1"
	}
	result := types.ComplianceResult{
		Standard:    standard,
		IsCompliant: report.IsCompliant,
		Issues:      make([]types.Issue, 0, len(report.Failures)),
	}
	for i, failure := range report.Failures {
		checkpoint, _, _ := strings.Cut(failure.Checkpoint, "-")
		mapped, ok := matterhornCheckpoints[checkpoint]
		if !ok {
			mapped.category = types.CategoryCompliance
			mapped.issue = "pdfua_violation"
		}
		severity := failure.Severity
		if severity == "" {
			severity = "error"
		}
		result.Issues = append(result.Issues, types.Issue{
			ID:          fmt.Sprintf("pdfua-%s-%d", failure.Checkpoint, i),
			Type:        mapped.issue,
			Category:    mapped.category,
			Severity:    NormalizeSeverity(severity),
			Description: failure.Description,
			Page:        failure.Page,
			AutoFixable: mapped.fixable,
		})
	}
	return result
}

// WCAGViolation is one failed success criterion in an accessibility audit.
type WCAGViolation struct {
	Criterion   string `json:"criterion"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	Page        *int   `json:"page,omitempty"`
}

// WCAGReport is the native report of a WCAG audit at one conformance level.
type WCAGReport struct {
	Version    string          `json:"version"`
	Level      string          `json:"level"`
	Violations []WCAGViolation `json:"violations"`
}

var wcagCriteria = map[string]string{
	"1.3.1": "missing_tags",
	"1.3.2": "missing_tags",
	"2.4.2": "missing_title",
	"3.1.1": "missing_language",
}

// NormalizeWCAG converts a WCAG audit into a ComplianceResult. The audit is
// compliant iff it reports no violations. Severity follows the violation impact.
func NormalizeWCAG(report WCAGReport) types.ComplianceResult {
	version := report.Version
	if version == "" {
		version = "2.1"
	}
	level := strings.ToUpper(report.Level)
	if level == "" {
		level = "AA"
	}
	result := types.ComplianceResult{
		Standard:    fmt.Sprintf("WCAG %s %s", version, level),
		IsCompliant: len(report.Violations) == 0,
		Issues:      make([]types.Issue, 0, len(report.Violations)),
	}
	for i, v := range report.Violations {
		issueType, fixable := wcagCriteria[v.Criterion]
		if !fixable {
			issueType = "wcag_violation"
		}
		result.Issues = append(result.Issues, types.Issue{
			ID:          fmt.Sprintf("wcag-%s-%d", v.Criterion, i),
			Type:        issueType,
			Category:    types.CategoryCompliance,
			Severity:    NormalizeSeverity(v.Impact),
			Description: v.Description,
			Page:        v.Page,
			AutoFixable: fixable,
		})
	}
	return result
}
