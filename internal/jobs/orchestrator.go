package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/preflight-agent/internal/types"
)

// DefaultPollInterval is used when AwaitCompletion is called with a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// Finished jobs that are not the latest of their kind are evicted once older
// than DefaultRetention or when more than DefaultMaxJobs are tracked.
const (
	DefaultRetention = time.Hour
	DefaultMaxJobs   = 500
)

// RemoteStatus is one response from the Processing API for a job.
type RemoteStatus struct {
	ID          string
	Status      types.JobStatus
	Progress    int
	ResultID    string
	DownloadURL string
	Error       string
}

// Backend is the Processing API contract the orchestrator drives.
// Every call is a network round trip.
type Backend interface {
	Submit(ctx context.Context, kind types.JobKind, doc types.Document, params map[string]any) (RemoteStatus, error)
	Status(ctx context.Context, kind types.JobKind, remoteID string) (RemoteStatus, error)
}

// Canceler is implemented by backends that can ask the remote side to stop a job.
type Canceler interface {
	Cancel(ctx context.Context, kind types.JobKind, remoteID string) error
}

// Notifier receives exactly one call per job when it reaches a terminal state.
type Notifier interface {
	JobFinished(ctx context.Context, job types.Job)
}

// Recorder persists job snapshots. Failures are logged and never affect the job.
type Recorder interface {
	RecordJob(ctx context.Context, job types.Job) error
}

type entry struct {
	job      types.Job
	notified bool
	stop     chan struct{}
}

// Orchestrator submits jobs, polls them, and keeps the latest job per kind.
// Job records are owned by the orchestrator; callers get copies.
type Orchestrator struct {
	backend  Backend
	logger   *slog.Logger
	notifier Notifier
	recorder Recorder
	now      func() time.Time
	bus      *updateBus
	maxAge   time.Duration
	maxJobs  int

	listenerMu sync.RWMutex
	listeners  []func(types.Job)

	mu     sync.Mutex
	jobs   map[string]*entry
	latest map[types.JobKind]string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier sets the terminal-state notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRecorder sets the job history recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRetention bounds how many finished jobs are kept in memory and for how
// long. Zero disables the respective limit.
func WithRetention(maxAge time.Duration, maxJobs int) Option {
	return func(o *Orchestrator) {
		o.maxAge = maxAge
		o.maxJobs = maxJobs
	}
}

// New creates an Orchestrator over backend.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
		maxAge:  DefaultRetention,
		maxJobs: DefaultMaxJobs,
		jobs:    make(map[string]*entry),
		latest:  make(map[types.JobKind]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.bus = newUpdateBus(o.logger)
	return o
}

// Submit sends an operation to the Processing API and starts tracking it.
func (o *Orchestrator) Submit(ctx context.Context, kind types.JobKind, doc types.Document, params map[string]any) (types.Job, error) {
	if !kind.Valid() {
		return types.Job{}, fmt.Errorf("unsupported job kind: %q", kind)
	}
	if doc.Path == "" {
		return types.Job{}, fmt.Errorf("submit %s: document is required", kind)
	}

	resp, err := o.backend.Submit(ctx, kind, doc, params)
	if err != nil {
		o.logger.Error("job submission failed", "kind", kind, "document", doc.Name, "error", err)
		return types.Job{}, err
	}
	if resp.ID == "" {
		return types.Job{}, fmt.Errorf("submit %s: Processing API returned no job id", kind)
	}

	now := o.now()
	job := types.Job{
		ID:          types.JobKey(kind, resp.ID),
		RemoteID:    resp.ID,
		Kind:        kind,
		Status:      resp.Status,
		Progress:    clampProgress(resp.Progress),
		ResultID:    resp.ResultID,
		DownloadURL: resp.DownloadURL,
		Error:       resp.Error,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}

	o.mu.Lock()
	e := &entry{job: job, stop: make(chan struct{})}
	o.jobs[job.ID] = e
	o.latest[kind] = job.ID
	notify := o.markNotifiedLocked(e)
	o.pruneLocked(now)
	o.mu.Unlock()

	o.logger.Info("job submitted", "job_id", job.ID, "remote_id", job.RemoteID, "kind", kind, "status", job.Status, "document", doc.Name)
	o.afterUpdate(ctx, job, notify)
	return job, nil
}

// Poll performs one status check. A terminal job is returned unchanged without a
// network call. A response that arrives after a local cancel is ignored.
func (o *Orchestrator) Poll(ctx context.Context, id string) (types.Job, error) {
	o.mu.Lock()
	e, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return types.Job{}, &JobNotFoundError{JobID: id}
	}
	current := e.job
	o.mu.Unlock()

	if current.IsTerminal() {
		return current, nil
	}

	resp, err := o.backend.Status(ctx, current.Kind, current.RemoteID)
	if err != nil {
		o.logger.Warn("job status check failed", "job_id", id, "kind", current.Kind, "error", err)
		return current, err
	}

	o.mu.Lock()
	if e.job.IsTerminal() {
		job := e.job
		o.mu.Unlock()
		o.logger.Debug("ignoring status for terminal job", "job_id", id, "status", job.Status)
		return job, nil
	}
	status := resp.Status
	if status == "" {
		status = e.job.Status
	}
	e.job.Status = status
	e.job.Progress = clampProgress(resp.Progress)
	if resp.ResultID != "" {
		e.job.ResultID = resp.ResultID
	}
	if resp.DownloadURL != "" {
		e.job.DownloadURL = resp.DownloadURL
	}
	e.job.Error = resp.Error
	e.job.UpdatedAt = o.now()
	job := e.job
	notify := o.markNotifiedLocked(e)
	o.mu.Unlock()

	o.logger.Debug("job polled", "job_id", id, "status", job.Status, "progress", job.Progress)
	o.afterUpdate(ctx, job, notify)
	return job, nil
}

// Cancel marks the job cancelled locally and stops any polling for it. The remote
// side is asked to stop on a best-effort basis when the backend supports it.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	e, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return &JobNotFoundError{JobID: id}
	}
	if e.job.IsTerminal() {
		o.mu.Unlock()
		return nil
	}
	e.job.Status = types.JobStatusCancelled
	e.job.UpdatedAt = o.now()
	close(e.stop)
	job := e.job
	notify := o.markNotifiedLocked(e)
	o.mu.Unlock()

	o.logger.Info("job cancelled", "job_id", id, "kind", job.Kind)
	o.afterUpdate(ctx, job, notify)

	if c, ok := o.backend.(Canceler); ok {
		if err := c.Cancel(ctx, job.Kind, job.RemoteID); err != nil {
			o.logger.Warn("remote cancel failed", "job_id", id, "error", err)
		}
	}
	return nil
}

// AwaitCompletion polls at a fixed interval until the job is terminal. A zero
// timeout never expires. Completed jobs return a nil error; failed jobs return
// *JobFailedError; cancelled jobs return ErrJobCancelled; exceeding the timeout
// returns *JobTimeoutError. Backend errors end the wait and are returned as is.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, id string, interval, timeout time.Duration) (types.Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	o.mu.Lock()
	e, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return types.Job{}, &JobNotFoundError{JobID: id}
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := o.Poll(ctx, id)
		if err != nil {
			return job, err
		}
		if job.IsTerminal() {
			return job, terminalError(job)
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-e.stop:
			cancelled, _ := o.Get(id)
			return cancelled, ErrJobCancelled
		case <-deadline:
			o.logger.Warn("job timed out", "job_id", id, "timeout", timeout)
			return job, &JobTimeoutError{
				JobID:        id,
				Timeout:      timeout,
				LastStatus:   job.Status,
				LastProgress: job.Progress,
			}
		case <-ticker.C:
		}
	}
}

// Get returns the locally known state of a job without a network call.
func (o *Orchestrator) Get(id string) (types.Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.jobs[id]
	if !ok {
		return types.Job{}, &JobNotFoundError{JobID: id}
	}
	return e.job, nil
}

// Latest returns the most recently submitted job of a kind.
func (o *Orchestrator) Latest(kind types.JobKind) (types.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.latest[kind]
	if !ok {
		return types.Job{}, false
	}
	return o.jobs[id].job, true
}

// Snapshot returns the latest job for every kind submitted so far.
func (o *Orchestrator) Snapshot() map[types.JobKind]types.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[types.JobKind]types.Job, len(o.latest))
	for kind, id := range o.latest {
		out[kind] = o.jobs[id].job
	}
	return out
}

// Subscribe streams every update of a job until the returned func is called.
func (o *Orchestrator) Subscribe(id string) (<-chan types.Job, func()) {
	return o.bus.subscribe(id)
}

// OnUpdate registers fn to receive every job state change.
func (o *Orchestrator) OnUpdate(fn func(types.Job)) {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// pruneLocked evicts finished jobs that are past the retention limits. The latest
// job of each kind and jobs still running are always kept.
func (o *Orchestrator) pruneLocked(now time.Time) {
	var evictable []*entry
	for id, e := range o.jobs {
		if !e.job.IsTerminal() || o.latest[e.job.Kind] == id {
			continue
		}
		if o.maxAge > 0 && now.Sub(e.job.UpdatedAt) > o.maxAge {
			delete(o.jobs, id)
			continue
		}
		evictable = append(evictable, e)
	}
	if o.maxJobs <= 0 || len(o.jobs) <= o.maxJobs {
		return
	}

	sort.Slice(evictable, func(i, j int) bool {
		return evictable[i].job.UpdatedAt.Before(evictable[j].job.UpdatedAt)
	})
	for _, e := range evictable {
		if len(o.jobs) <= o.maxJobs {
			break
		}
		delete(o.jobs, e.job.ID)
	}
	o.logger.Debug("pruned finished jobs", "tracked", len(o.jobs))
}

// markNotifiedLocked reports whether the terminal notification must be sent now.
func (o *Orchestrator) markNotifiedLocked(e *entry) bool {
	if !e.job.IsTerminal() || e.notified {
		return false
	}
	e.notified = true
	return true
}

func (o *Orchestrator) afterUpdate(ctx context.Context, job types.Job, notify bool) {
	o.bus.publish(job)

	o.listenerMu.RLock()
	listeners := o.listeners
	o.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(job)
	}

	if o.recorder != nil {
		if err := o.recorder.RecordJob(ctx, job); err != nil {
			o.logger.Warn("failed to record job", "job_id", job.ID, "error", err)
		}
	}

	if notify {
		if job.Status == types.JobStatusFailed {
			o.logger.Error("job failed", "job_id", job.ID, "kind", job.Kind, "error", job.Error)
		} else {
			o.logger.Info("job finished", "job_id", job.ID, "kind", job.Kind, "status", job.Status)
		}
		if o.notifier != nil {
			o.notifier.JobFinished(ctx, job)
		}
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
