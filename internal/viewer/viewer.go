// Package viewer defines the document viewer collaborator and builds the issue
// overlays it draws on each page.
package viewer

import (
	"context"
	"sort"
	"strings"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/types"
)

// Color is an overlay colour name understood by viewers.
type Color string

// Overlay colours
const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorBlue   Color = "blue"
)

// Hex returns the RGB hex code of the colour.
func (c Color) Hex() string {
	switch c {
	case ColorRed:
		return "#DC2626"
	case ColorOrange:
		return "#EA580C"
	default:
		return "#2563EB"
	}
}

// SeverityColor maps a severity label to its overlay colour: high or critical is
// red, medium or warning is orange and everything else is blue.
func SeverityColor(severity string) Color {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "high", "critical":
		return ColorRed
	case "medium", "warning":
		return ColorOrange
	}
	return ColorBlue
}

// Overlay is one rectangle drawn over a page. Coordinates are normalized 0-1.
type Overlay struct {
	IssueID  string         `json:"issueId"`
	Page     int            `json:"page"`
	Location types.Location `json:"location"`
	Color    Color          `json:"color"`
	Label    string         `json:"label"`
}

// PageOverlays groups the overlays of one page.
type PageOverlays struct {
	Page     int       `json:"page"`
	Overlays []Overlay `json:"overlays"`
}

// Viewer renders a document with issue overlays.
type Viewer interface {
	Render(ctx context.Context, doc types.Document, pages []PageOverlays) error
}

// BuildOverlays turns located issues into per-page overlays ordered by page.
// Issues without a page or location are not drawn. Locations are clamped to the
// page.
func BuildOverlays(issues []types.Issue) []PageOverlays {
	byPage := aggregation.IssuesByPage(issues)

	pages := make([]int, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	out := make([]PageOverlays, 0, len(pages))
	for _, page := range pages {
		var overlays []Overlay
		for _, issue := range byPage[page] {
			if !issue.HasLocation() {
				continue
			}
			label := issue.Description
			if label == "" {
				label = issue.Type
			}
			overlays = append(overlays, Overlay{
				IssueID:  issue.ID,
				Page:     page,
				Location: clamp(*issue.Location),
				Color:    SeverityColor(string(issue.Severity)),
				Label:    label,
			})
		}
		if len(overlays) > 0 {
			out = append(out, PageOverlays{Page: page, Overlays: overlays})
		}
	}
	return out
}

func clamp(l types.Location) types.Location {
	l.X = clamp01(l.X)
	l.Y = clamp01(l.Y)
	l.Width = min(clamp01(l.Width), 1-l.X)
	l.Height = min(clamp01(l.Height), 1-l.Y)
	return l
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
