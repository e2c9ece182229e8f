// Package aggregation turns Processing API validation payloads into the summaries
// the wizard and report layers display.
package aggregation

import (
	"sort"

	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/types"
)

// Summary is the aggregated view of a single-engine ValidationResult.
type Summary struct {
	FileName      string                           `json:"fileName"`
	QualityScore  float64                          `json:"qualityScore"`
	TotalIssues   int                              `json:"totalIssues"`
	ByCategory    map[types.Category][]types.Issue `json:"byCategory"`
	BySeverity    map[types.Severity]int           `json:"bySeverity"`
	FixableIssues []types.Issue                    `json:"fixableIssues"`
}

// Categories returns the non-empty categories of the summary in display order.
func (s Summary) Categories() []types.Category {
	var out []types.Category
	for _, c := range types.OrderedCategories(s.ByCategory) {
		if len(s.ByCategory[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// CategoryCount returns the number of issues in c. Absent categories count as zero.
func (s Summary) CategoryCount(c types.Category) int {
	return len(s.ByCategory[c])
}

// AggregateSingle groups a ValidationResult by category and severity and collects
// the auto-fixable issues in category order, then payload order.
// Severities outside the canonical set are counted as info.
func AggregateSingle(r *types.ValidationResult) Summary {
	summary := Summary{
		ByCategory:    make(map[types.Category][]types.Issue),
		BySeverity:    make(map[types.Severity]int, len(types.Severities)),
		FixableIssues: []types.Issue{},
	}
	for _, s := range types.Severities {
		summary.BySeverity[s] = 0
	}
	if r == nil {
		return summary
	}

	summary.FileName = r.FileName
	summary.QualityScore = r.QualityScore
	summary.TotalIssues = r.TotalIssues

	normalized := NormalizeCategories(r.IssuesByCategory)
	for _, c := range types.OrderedCategories(normalized) {
		issues := normalized[c]
		summary.ByCategory[c] = issues
		for _, issue := range issues {
			summary.BySeverity[issue.Severity.OrInfo()]++
			if issue.AutoFixable {
				summary.FixableIssues = append(summary.FixableIssues, issue)
			}
		}
	}
	return summary
}

// NormalizeCategories re-keys a server category map onto canonical categories.
// Labels such as "STRUCTURAL" or "Fonts" collapse onto the same key; issues keep
// their relative order. Unknown labels are kept, lower-cased.
func NormalizeCategories(byCategory map[types.Category][]types.Issue) map[types.Category][]types.Issue {
	out := make(map[types.Category][]types.Issue, len(byCategory))

	labels := make([]string, 0, len(byCategory))
	for label := range byCategory {
		labels = append(labels, string(label))
	}
	// Deterministic merge order when two labels collapse onto one category
	sort.Strings(labels)

	for _, label := range labels {
		c, _ := types.ParseCategory(label)
		out[c] = append(out[c], byCategory[types.Category(label)]...)
	}
	return out
}

// MultiStandardSummary is the aggregated view of several independent compliance verdicts.
type MultiStandardSummary struct {
	PerStandard      map[string][]types.Issue `json:"perStandard"`
	OverallCompliant bool                     `json:"overallCompliant"`
	Standards        []string                 `json:"standards"`
}

// AggregateMultiStandard exposes each standard's issue list unchanged and computes
// the overall verdict as the AND of every standard. An empty result is not compliant.
func AggregateMultiStandard(m types.MultiStandardResult) MultiStandardSummary {
	summary := MultiStandardSummary{
		PerStandard:      make(map[string][]types.Issue, len(m)),
		OverallCompliant: m.IsCompliant(),
		Standards:        m.Standards(),
	}
	for key, result := range m {
		summary.PerStandard[key] = result.Issues
	}
	return summary
}

// MapIssueToFixType returns the fix operation that remediates issue, if any.
func MapIssueToFixType(issue types.Issue) (string, bool) {
	return fixes.FixForIssueType(issue.Type)
}

// IssuesByPage groups located issues by page number. Issues without a page are skipped.
func IssuesByPage(issues []types.Issue) map[int][]types.Issue {
	out := make(map[int][]types.Issue)
	for _, issue := range issues {
		if issue.Page == nil {
			continue
		}
		out[*issue.Page] = append(out[*issue.Page], issue)
	}
	return out
}
