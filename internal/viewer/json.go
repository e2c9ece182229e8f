package viewer

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jonathan/preflight-agent/internal/types"
)

// JSONViewer writes the overlay plan as JSON for an external renderer.
type JSONViewer struct {
	Out io.Writer
}

type overlayPlan struct {
	Document types.Document `json:"document"`
	Pages    []PageOverlays `json:"pages"`
}

// Render implements Viewer.
func (v JSONViewer) Render(_ context.Context, doc types.Document, pages []PageOverlays) error {
	enc := json.NewEncoder(v.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(overlayPlan{Document: doc, Pages: pages})
}
