package jobs

import (
	"log/slog"
	"sync"

	"github.com/jonathan/preflight-agent/internal/types"
)

// subscriberBuffer bounds each subscription; a full subscriber drops updates.
const subscriberBuffer = 64

// updateBus fans job updates out to per-job subscribers.
type updateBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan types.Job
}

func newUpdateBus(logger *slog.Logger) *updateBus {
	return &updateBus{
		logger: logger,
		subs:   make(map[string][]chan types.Job),
	}
}

func (b *updateBus) subscribe(jobID string) (<-chan types.Job, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.Job, subscriberBuffer)
	b.subs[jobID] = append(b.subs[jobID], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subscribers := b.subs[jobID]
			for i, sub := range subscribers {
				if sub == ch {
					close(ch)
					b.subs[jobID] = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(b.subs[jobID]) == 0 {
				delete(b.subs, jobID)
			}
		})
	}
	return ch, unsub
}

func (b *updateBus) publish(job types.Job) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[job.ID] {
		select {
		case ch <- job:
		default:
			b.logger.Warn("job update channel full, dropping update", "job_id", job.ID)
		}
	}
}
