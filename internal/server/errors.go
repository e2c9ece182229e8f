// Package server provides the HTTP REST facade over the preflight wizard.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/processing"
	"github.com/jonathan/preflight-agent/internal/wizard"
)

// ErrSessionNotFound indicates the session id is unknown
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// ErrSessionBusy indicates a step of the session is still running
type ErrSessionBusy struct {
	SessionID string
	Step      wizard.StepID
}

func (e *ErrSessionBusy) Error() string {
	return fmt.Sprintf("session %s is busy running step %s", e.SessionID, e.Step)
}

// ErrNotReady indicates the session has not produced what was asked for yet
type ErrNotReady struct {
	What string
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s is not available yet", e.What)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound    *ErrSessionNotFound
		jobNotFound *jobs.JobNotFoundError
		busy        *ErrSessionBusy
		notReady    *ErrNotReady
		transition  *wizard.InvalidTransitionError
		validation  *ErrValidation
		unsupported *processing.UnsupportedFileError
		failed      *jobs.JobFailedError
		timeout     *jobs.JobTimeoutError
		network     *jobs.NetworkError
		noResult    *jobs.MissingResultError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &jobNotFound):
		return http.StatusNotFound
	case errors.As(err, &busy), errors.As(err, &notReady), errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &failed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &network), errors.As(err, &noResult):
		return http.StatusBadGateway
	case errors.Is(err, jobs.ErrJobCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
