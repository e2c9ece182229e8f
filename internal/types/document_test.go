// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flyer.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0644))

	doc, err := OpenDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "flyer.pdf", doc.Name)
	assert.Equal(t, int64(9), doc.Size)

	rc, err := doc.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7\n", string(content))
}

func TestOpenDocument_Errors(t *testing.T) {
	_, err := OpenDocument(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	_, err = OpenDocument(t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}
