// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_OrInfo(t *testing.T) {
	tests := []struct {
		in   Severity
		want Severity
	}{
		{SeverityHigh, SeverityHigh},
		{SeverityMedium, SeverityMedium},
		{SeverityLow, SeverityLow},
		{SeverityInfo, SeverityInfo},
		{"critical", SeverityInfo},
		{"", SeverityInfo},
		{"HIGH", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.OrInfo())
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		label  string
		want   Category
		wantOK bool
	}{
		{"STRUCTURAL", CategoryStructural, true},
		{"font", CategoryFonts, true},
		{"Colors", CategoryColor, true},
		{"images", CategoryImage, true},
		{"PRINT_PRODUCTION", CategoryPrintProduction, true},
		{"print-production", CategoryPrintProduction, true},
		{"security", CategorySecurity, true},
		{"Accessibility", Category("accessibility"), false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseCategory(tt.label)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestOrderedCategories(t *testing.T) {
	byCategory := map[Category][]Issue{
		"zeta":                  nil,
		CategoryPrintProduction: nil,
		CategoryStructural:      nil,
		"alpha":                 nil,
		CategoryColor:           nil,
	}

	got := OrderedCategories(byCategory)
	assert.Equal(t, []Category{CategoryStructural, CategoryColor, CategoryPrintProduction, "alpha", "zeta"}, got)
}

func TestIssue_JSONFieldNames(t *testing.T) {
	page := 3
	issue := Issue{
		ID:          "i-1",
		Type:        "unembedded_fonts",
		Category:    CategoryFonts,
		Severity:    SeverityHigh,
		Page:        &page,
		Location:    &Location{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05},
		AutoFixable: true,
	}

	jsonBytes, err := json.Marshal(issue)
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"autoFixable":true`)
	assert.Contains(t, string(jsonBytes), `"page":3`)
	assert.NotContains(t, string(jsonBytes), "fixDescription")
	assert.True(t, issue.HasLocation())

	issue.Location = nil
	assert.False(t, issue.HasLocation())
}
