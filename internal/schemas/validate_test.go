package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	embedded "github.com/jonathan/preflight-agent/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePayload_JobStatus(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantError bool
	}{
		{"processing", `{"status":"processing","progress":40}`, false},
		{"completed with result", `{"status":"completed","progress":100,"resultId":"r1"}`, false},
		{"null optionals", `{"status":"failed","progress":0,"error":null,"errorMessage":"boom"}`, false},
		{"missing status", `{"progress":40}`, true},
		{"wrong progress type", `{"status":"processing","progress":"forty"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(embedded.JobStatus, []byte(tt.payload))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError, got %T", err)
			assert.Equal(t, embedded.JobStatus, validationErr.Schema)
			assert.Greater(t, len(validationErr.Errors), 0)
		})
	}
}

func TestValidatePayload_SubmitResponse(t *testing.T) {
	assert.NoError(t, ValidatePayload(embedded.SubmitResponse, []byte(`{"processId":"p1","status":"pending"}`)))
	assert.NoError(t, ValidatePayload(embedded.SubmitResponse, []byte(`{"fixJobId":"f1","status":"processing"}`)))
	assert.Error(t, ValidatePayload(embedded.SubmitResponse, []byte(`{"status":"pending"}`)))
}

func TestValidatePayload_ValidationResult(t *testing.T) {
	valid := `{
		"fileName": "brochure.pdf",
		"fileSize": 2097152,
		"qualityScore": 80,
		"totalIssues": 1,
		"issuesByCategory": {
			"fonts": [{"id": "i1", "type": "unembedded_fonts", "severity": "high", "page": 1,
				"location": {"x": 0.1, "y": 0.1, "width": 0.2, "height": 0.1}, "autoFixable": true}]
		}
	}`
	assert.NoError(t, ValidatePayload(embedded.ValidationResult, []byte(valid)))

	outOfRange := `{
		"totalIssues": 1,
		"issuesByCategory": {
			"fonts": [{"id": "i1", "type": "unembedded_fonts", "severity": "high",
				"location": {"x": 1.5, "y": 0, "width": 0.2, "height": 0.1}}]
		}
	}`
	err := ValidatePayload(embedded.ValidationResult, []byte(outOfRange))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "x")
}

func TestValidatePayload_IssueSeverityOptional(t *testing.T) {
	for _, issue := range []string{
		`{"id": "i1", "type": "rgb_colors", "severity": null}`,
		`{"id": "i1", "type": "rgb_colors"}`,
		`{"id": "i1", "type": "rgb_colors", "severity": "critical"}`,
	} {
		payload := `{"totalIssues": 1, "issuesByCategory": {"color": [` + issue + `]}}`
		assert.NoError(t, ValidatePayload(embedded.ValidationResult, []byte(payload)), issue)

		compliance := `{"standard": "PDF/A-1b", "isCompliant": false, "issues": [` + issue + `]}`
		assert.NoError(t, ValidatePayload(embedded.ComplianceResult, []byte(compliance)), issue)
	}

	err := ValidatePayload(embedded.ValidationResult, []byte(`{"totalIssues": 1, "issuesByCategory": {"color": [{"id": "i1", "type": "rgb_colors", "severity": 3}]}}`))
	assert.Error(t, err)
}

func TestValidatePayload_MalformedJSON(t *testing.T) {
	err := ValidatePayload(embedded.JobStatus, []byte("{ invalid json }"))
	require.Error(t, err)
	var validationErr *ValidationError
	assert.False(t, errors.As(err, &validationErr))
}

func TestCompile_UnknownSchema(t *testing.T) {
	_, err := Compile("nope.schema.json")
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "nope.schema.json", loadErr.Path)
	assert.NotNil(t, errors.Unwrap(loadErr))
}

func TestCompile_Cached(t *testing.T) {
	first, err := Compile(embedded.JobStatus)
	require.NoError(t, err)
	second, err := Compile(embedded.JobStatus)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestValidateFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":"completed","progress":100}`), 0644))

	assert.NoError(t, ValidateFile(embedded.JobStatus, path))

	err := ValidateFile(embedded.JobStatus, filepath.Join(tmpDir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"name": "test"}`

	err := ValidateJSONString(schemaContent, jsonContent)
	assert.NoError(t, err)
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"age": 30}`

	err := ValidateJSONString(schemaContent, jsonContent)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "status", Message: "is required"},
			{Field: "progress", Message: "must be a number"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "status")
	assert.Contains(t, errorMsg, "progress")

	err.Schema = embedded.JobStatus
	assert.Contains(t, err.Error(), embedded.JobStatus)
}

func TestValidateJSONString_NestedFieldValidation(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["location"],
		"properties": {
			"location": {
				"type": "object",
				"required": ["x"],
				"properties": {
					"x": {"type": "number"}
				}
			}
		}
	}`

	err := ValidateJSONString(schemaContent, `{"location": {}}`)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Greater(t, len(validationErr.Errors), 0)
	assert.Equal(t, "location", validationErr.Errors[0].Field)
}
