package host

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aside/schedule"
)

// DefaultPollInterval is how often the watcher asks the store for changes.
const DefaultPollInterval = 100 * time.Millisecond

// Watcher polls the transcript store and feeds candidate message ids into
// the scheduler. It is a thin adapter - everything about batching, ordering
// and timing lives in the scheduler.
type Watcher struct {
	store    *Store
	sched    *schedule.Scheduler
	interval time.Duration
	log      *zap.Logger

	lastRev   int64
	streaming bool
}

func NewWatcher(store *Store, sched *schedule.Scheduler, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{store: store, sched: sched, interval: interval, log: log}
}

// Run polls until the context is canceled. Queued scheduler work is
// canceled on the way out.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.sched.CancelAll()
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(); err != nil {
				w.log.Warn("Transcript poll failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) poll() error {
	ids, rev, err := w.store.ChangedSince(w.lastRev)
	if err != nil {
		return err
	}
	w.lastRev = rev
	for _, id := range ids {
		w.sched.ScheduleUpdate(id, false)
	}

	streaming, err := w.store.Streaming()
	if err != nil {
		return err
	}
	if streaming != w.streaming {
		w.streaming = streaming
		w.log.Debug("Streaming state changed", zap.Bool("streaming", streaming))
		w.sched.SetStreaming(streaming)
	}
	return nil
}
