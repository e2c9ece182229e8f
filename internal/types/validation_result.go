// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "sort"

// ValidationResult is the single-engine preflight report returned by the Processing API.
// QualityScore is computed remotely and treated as opaque.
type ValidationResult struct {
	FileName         string               `json:"fileName"`
	FileSize         int64                `json:"fileSize"`
	QualityScore     float64              `json:"qualityScore"`
	IssuesByCategory map[Category][]Issue `json:"issuesByCategory"`
	TotalIssues      int                  `json:"totalIssues"`
	SupportedFixes   map[string]bool      `json:"supportedFixes,omitempty"`
}

// AllIssues flattens IssuesByCategory in canonical category order, preserving the
// original array order inside each category.
func (r *ValidationResult) AllIssues() []Issue {
	if r == nil {
		return nil
	}
	var all []Issue
	for _, c := range OrderedCategories(r.IssuesByCategory) {
		all = append(all, r.IssuesByCategory[c]...)
	}
	return all
}

// ComplianceResult is one standard's verdict (PDF/A-1b, PDF/UA-1, WCAG 2.1 AA, ...).
type ComplianceResult struct {
	Standard    string  `json:"standard"`
	IsCompliant bool    `json:"isCompliant"`
	Issues      []Issue `json:"issues"`
}

// MultiStandardResult maps a standard key to its independent verdict.
type MultiStandardResult map[string]ComplianceResult

// IsCompliant is true iff every standard is compliant. An empty result is not compliant.
func (m MultiStandardResult) IsCompliant() bool {
	if len(m) == 0 {
		return false
	}
	for _, r := range m {
		if !r.IsCompliant {
			return false
		}
	}
	return true
}

// Standards returns the standard keys sorted lexically.
func (m MultiStandardResult) Standards() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
