// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatus("unknown").IsTerminal())
}

func TestJobKind_Valid(t *testing.T) {
	for _, k := range []JobKind{JobKindValidate, JobKindFix, JobKindOCR, JobKindRedact, JobKindConvert} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, JobKind("print").Valid())
}

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		label string
		want  JobStatus
	}{
		{"", JobStatusPending},
		{"QUEUED", JobStatusPending},
		{"processing", JobStatusProcessing},
		{"running", JobStatusProcessing},
		{"completed", JobStatusCompleted},
		{"success", JobStatusCompleted},
		{"failed", JobStatusFailed},
		{"error", JobStatusFailed},
		{"canceled", JobStatusCancelled},
		{"something-new", JobStatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJobStatus(tt.label))
		})
	}
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "validate:42", JobKey(JobKindValidate, "42"))
	assert.NotEqual(t, JobKey(JobKindValidate, "42"), JobKey(JobKindFix, "42"))
}
