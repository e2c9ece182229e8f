package jobs

import (
	"context"
	"time"

	"github.com/jonathan/preflight-agent/internal/types"
)

// Handle is a running AwaitCompletion loop with an explicit cancellation token.
type Handle struct {
	JobID string

	orchestrator *Orchestrator
	done         chan struct{}
	job          types.Job
	err          error
}

// Watch starts AwaitCompletion in the background and returns a handle to it.
func (o *Orchestrator) Watch(ctx context.Context, id string, interval, timeout time.Duration) *Handle {
	h := &Handle{
		JobID:        id,
		orchestrator: o,
		done:         make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		h.job, h.err = o.AwaitCompletion(ctx, id, interval, timeout)
	}()
	return h
}

// Done is closed once the watched job is terminal or the wait ended with an error.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop ends and returns its outcome.
func (h *Handle) Wait() (types.Job, error) {
	<-h.done
	return h.job, h.err
}

// Cancel cancels the job and stops polling. Wait then returns ErrJobCancelled.
func (h *Handle) Cancel(ctx context.Context) error {
	return h.orchestrator.Cancel(ctx, h.JobID)
}
