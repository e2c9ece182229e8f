// Package types provides type definitions for structured data used throughout the preflight agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// JobKind is the remote operation a job runs.
type JobKind string

// JobKind values
const (
	JobKindValidate JobKind = "validate"
	JobKindFix      JobKind = "fix"
	JobKindOCR      JobKind = "ocr"
	JobKindRedact   JobKind = "redact"
	JobKindConvert  JobKind = "convert"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindValidate, JobKindFix, JobKindOCR, JobKindRedact, JobKindConvert:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

// JobStatus values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ParseJobStatus maps a status label reported by the Processing API onto a JobStatus.
// Unknown labels are treated as still processing so they never end polling early.
func ParseJobStatus(label string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pending", "queued", "submitted", "":
		return JobStatusPending
	case "processing", "running", "in_progress", "started":
		return JobStatusProcessing
	case "completed", "complete", "done", "success", "succeeded":
		return JobStatusCompleted
	case "failed", "failure", "error":
		return JobStatusFailed
	case "cancelled", "canceled":
		return JobStatusCancelled
	}
	return JobStatusProcessing
}

// JobKey is the local id of a job. Remote ids are only unique within a kind.
func JobKey(kind JobKind, remoteID string) string {
	return string(kind) + ":" + remoteID
}

// Job tracks a single asynchronous remote operation. ID is the local key and
// RemoteID the id the Processing API assigned.
type Job struct {
	ID          string    `json:"id"`
	RemoteID    string    `json:"remoteId"`
	Kind        JobKind   `json:"kind"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	ResultID    string    `json:"resultId,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsTerminal reports whether the job reached completed, failed or cancelled.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}
