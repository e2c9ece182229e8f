// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"sort"
	"strings"
)

// Severity is the canonical severity of a detected issue.
type Severity string

// Severity values. Anything else is counted as SeverityInfo.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// Severities lists the canonical severities from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Valid reports whether s is one of the canonical severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// OrInfo returns s when it is canonical and SeverityInfo otherwise.
func (s Severity) OrInfo() Severity {
	if s.Valid() {
		return s
	}
	return SeverityInfo
}

// Category groups issues by the validation engine area that produced them.
type Category string

// Category values in display order.
const (
	CategoryStructural      Category = "structural"
	CategoryFonts           Category = "fonts"
	CategoryColor           Category = "color"
	CategoryImage           Category = "image"
	CategoryCompliance      Category = "compliance"
	CategorySecurity        Category = "security"
	CategoryPrintProduction Category = "print_production"
)

// Categories is the canonical category order.
var Categories = []Category{
	CategoryStructural,
	CategoryFonts,
	CategoryColor,
	CategoryImage,
	CategoryCompliance,
	CategorySecurity,
	CategoryPrintProduction,
}

// ParseCategory maps a server category label onto a canonical Category.
// Labels are matched case-insensitively; "font" and "images" style plurals are accepted.
// Unknown labels are returned lower-cased with ok=false.
func ParseCategory(label string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	switch normalized {
	case "structural", "structure":
		return CategoryStructural, true
	case "fonts", "font":
		return CategoryFonts, true
	case "color", "colors", "colour":
		return CategoryColor, true
	case "image", "images":
		return CategoryImage, true
	case "compliance":
		return CategoryCompliance, true
	case "security":
		return CategorySecurity, true
	case "print_production", "printproduction", "print":
		return CategoryPrintProduction, true
	}
	return Category(normalized), false
}

// OrderedCategories returns the keys of byCategory with canonical categories first in
// display order, followed by any unknown categories sorted lexically.
func OrderedCategories(byCategory map[Category][]Issue) []Category {
	ordered := make([]Category, 0, len(byCategory))
	seen := make(map[Category]bool, len(Categories))
	for _, c := range Categories {
		seen[c] = true
		if _, ok := byCategory[c]; ok {
			ordered = append(ordered, c)
		}
	}

	var extra []Category
	for c := range byCategory {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(ordered, extra...)
}

// Location is a rectangle on a page in normalized (0-1) coordinates.
type Location struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Issue is a single problem detected in a document by a validation engine.
// Issues are immutable once received. ID is the identity; Type is shared by
// duplicates reported by different validators.
type Issue struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Category       Category  `json:"category"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description,omitempty"`
	Page           *int      `json:"page,omitempty"`
	Location       *Location `json:"location,omitempty"`
	AutoFixable    bool      `json:"autoFixable"`
	FixDescription string    `json:"fixDescription,omitempty"`
}

// HasLocation reports whether the issue can be drawn on a page.
func (i Issue) HasLocation() bool {
	return i.Page != nil && i.Location != nil
}
