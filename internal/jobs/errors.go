// Package jobs submits remote operations to the Processing API and tracks them
// until they reach a terminal state.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/preflight-agent/internal/types"
)

// ErrJobCancelled is returned when a job was cancelled locally while being awaited.
var ErrJobCancelled = errors.New("job cancelled")

// NetworkError represents a transport or HTTP failure reaching the Processing API.
// It is surfaced to the user with a retry action and never retried automatically.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("network error during %s", e.Op)
	if e.URL != "" {
		msg += fmt.Sprintf(" (%s)", e.URL)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// JobFailedError reports that the remote operation finished with status=failed.
// Message is the remote error text, unmodified.
type JobFailedError struct {
	JobID   string
	Kind    types.JobKind
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// JobTimeoutError reports that polling exceeded the caller-supplied timeout.
type JobTimeoutError struct {
	JobID        string
	Timeout      time.Duration
	LastStatus   types.JobStatus
	LastProgress int
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within %s (last status %s, progress %d%%)",
		e.JobID, e.Timeout, e.LastStatus, e.LastProgress)
}

// MissingResultError reports a completed job the Processing API gave no result id.
type MissingResultError struct {
	JobID string
	Kind  types.JobKind
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("%s job %s completed without a result id", e.Kind, e.JobID)
}

// JobNotFoundError reports a job id this orchestrator never submitted.
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// terminalError converts a terminal job into the error AwaitCompletion returns.
func terminalError(job types.Job) error {
	switch job.Status {
	case types.JobStatusFailed:
		return &JobFailedError{JobID: job.ID, Kind: job.Kind, Message: job.Error}
	case types.JobStatusCancelled:
		return ErrJobCancelled
	}
	return nil
}
