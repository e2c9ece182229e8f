// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Document is a handle to the single binary file a job operates on.
type Document struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// OpenDocument stats path and returns a handle for it.
func OpenDocument(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to stat document %s: %w", path, err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("document path is a directory: %s", path)
	}
	return Document{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}, nil
}

// Open returns a reader over the document content.
func (d Document) Open() (io.ReadCloser, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", d.Path, err)
	}
	return f, nil
}
