package db

import (
	"time"

	"github.com/google/uuid"
)

// JobRecord is one row of job history.
type JobRecord struct {
	ID           uuid.UUID  `json:"id"`
	JobID        string     `json:"job_id"`
	RemoteID     string     `json:"remote_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	ResultID     *string    `json:"result_id,omitempty"`
	DownloadURL  *string    `json:"download_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// JobFilters holds optional filters for listing job history
type JobFilters struct {
	Kind   string
	Status string
	Limit  int
}

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 50

// SessionEvent constants
const (
	SessionEventStarted   = "started"
	SessionEventCompleted = "completed"
	SessionEventSkipped   = "skipped"
	SessionEventFailed    = "failed"
	SessionEventReset     = "reset"
)

// SessionEvent is an audit entry for a wizard session.
type SessionEvent struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Step      string         `json:"step"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionEventInput represents input for recording a session event
type SessionEventInput struct {
	Step    string
	Event   string
	Payload map[string]any
}
