package processing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jonathan/preflight-agent/internal/types"
)

// sniffLen is how many leading bytes are inspected to detect the file type.
const sniffLen = 3072

// formFields turns opaque job params into multipart fields. Strings are sent
// as is and everything else as JSON. The compliance standard travels in the
// URL path for validate jobs and is not repeated in the form.
func formFields(kind types.JobKind, params map[string]any) map[string]any {
	fields := make(map[string]any, len(params))
	for k, v := range params {
		if kind == types.JobKindValidate && k == ParamStandard {
			continue
		}
		fields[k] = v
	}
	return fields
}

// buildUpload builds the multipart body for doc and fields. The document must be a PDF.
func buildUpload(doc types.Document, fields map[string]any) ([]byte, string, error) {
	f, err := doc.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", doc.Name, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", fmt.Errorf("failed to read %s: %w", doc.Name, err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !detected.Is("application/pdf") {
		return nil, "", &UnsupportedFileError{Name: doc.Name, MIMEType: detected.String()}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, io.MultiReader(bytes.NewReader(head), f)); err != nil {
		return nil, "", fmt.Errorf("failed to copy %s: %w", doc.Name, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, err := fieldValue(fields[k])
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		if err := w.WriteField(k, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize upload: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func fieldValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
