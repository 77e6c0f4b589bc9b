package sessionkit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Janitor is the periodic caller of [Manager.CleanupExpired]. It is external
// to the store core: the Manager never starts one implicitly, and callers who
// prefer purely lazy expiry simply never construct it.
type Janitor struct {
	mgr      *Manager
	interval time.Duration
	log      *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewJanitor starts a cleanup loop sweeping mgr at the given interval. The
// interval falls back to the manager's configured Janitor.Interval when zero.
// The loop runs until Close.
func NewJanitor(mgr *Manager, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = mgr.config.Janitor.Interval
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		mgr:      mgr,
		interval: interval,
		log:      logger,
		done:     make(chan struct{}),
	}

	j.wg.Add(1)
	go j.run()

	return j
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := j.mgr.clock.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			j.sweep()
		case <-j.done:
			return
		}
	}
}

func (j *Janitor) sweep() {
	removed, err := j.mgr.CleanupExpired(context.Background())
	if err != nil {
		// A poisoned store stays poisoned until an operator resets it;
		// keep ticking so sweeps resume after the reset.
		if errors.Is(err, ErrStorePoisoned) {
			j.log.Error("session cleanup skipped: store poisoned")
			return
		}
		j.log.Error("session cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		j.log.Debug("session cleanup", "removed", removed)
	}
}

// Close stops the loop and waits for an in-flight sweep to finish.
func (j *Janitor) Close() {
	j.closeOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
