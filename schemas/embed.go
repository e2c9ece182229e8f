// Package schemas embeds the JSON Schemas for Processing API payloads and
// REST facade responses.
package schemas

import "embed"

// Schema file names.
const (
	SubmitResponse   = "submit_response.schema.json"
	JobStatus        = "job_status.schema.json"
	ValidationResult = "validation_result.schema.json"
	ComplianceResult = "compliance_result.schema.json"
	WizardSession    = "wizard_session.schema.json"
)

// All lists every embedded schema.
var All = []string{SubmitResponse, JobStatus, ValidationResult, ComplianceResult, WizardSession}

//go:embed *.schema.json
var FS embed.FS
