package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/preflight-agent/internal/types"
)

// Event names on GET /jobs/{id}/events.
const (
	eventStatus   = "status"
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// Stream timing. Clients reconnect after sseRetry; a comment line goes out
// every sseKeepAlive so idle proxies keep the connection open.
var (
	sseRetry     = 2 * time.Second
	sseKeepAlive = 15 * time.Second
)

// ProgressEvent is sent when only the progress of a job moved.
type ProgressEvent struct {
	JobID    string `json:"jobId"`
	Progress int    `json:"progress"`
}

// CompleteEvent is the last event of a job stream.
type CompleteEvent struct {
	JobID       string          `json:"jobId"`
	Kind        types.JobKind   `json:"kind"`
	Status      types.JobStatus `json:"status"`
	ResultID    string          `json:"resultId,omitempty"`
	DownloadURL string          `json:"downloadUrl,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// jobEventWriter streams the snapshots of one job as server-sent events.
// A status change is sent as the full job, a progress-only change as a
// ProgressEvent, and an unchanged snapshot not at all.
type jobEventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
	last    *types.Job
}

func newJobEventWriter(w http.ResponseWriter) (*jobEventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", sseRetry.Milliseconds()); err != nil {
		return nil, err
	}
	flusher.Flush()

	return &jobEventWriter{w: w, flusher: flusher}, nil
}

// Job writes the events for one snapshot and reports whether the job is
// terminal, after which the stream is done.
func (s *jobEventWriter) Job(job types.Job) (bool, error) {
	var err error
	switch {
	case s.last == nil || s.last.Status != job.Status:
		err = s.write(eventStatus, job)
	case s.last.Progress != job.Progress:
		err = s.write(eventProgress, ProgressEvent{JobID: job.ID, Progress: job.Progress})
	}
	if err != nil {
		return false, err
	}
	s.last = &job

	if !job.IsTerminal() {
		return false, nil
	}
	return true, s.write(eventComplete, CompleteEvent{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		ResultID:    job.ResultID,
		DownloadURL: job.DownloadURL,
		Error:       job.Error,
	})
}

// Error sends an error event. The stream should end afterwards.
func (s *jobEventWriter) Error(message string) {
	s.write(eventError, map[string]string{"error": message}) //nolint:errcheck
}

// KeepAlive writes a comment line, which EventSource clients ignore.
func (s *jobEventWriter) KeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *jobEventWriter) write(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
