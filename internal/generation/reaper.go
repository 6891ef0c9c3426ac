package generation

import (
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically evicts terminal jobs older than the configured TTL.
// Running jobs are never touched no matter how old they are.
type Reaper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewReaper creates a reaper sweeping every interval. A non-positive
// interval disables sweeping entirely.
func NewReaper(store *Store, interval, ttl time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		ttl:      ttl,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. No-op when sweeping is disabled.
func (r *Reaper) Start() {
	if r.interval <= 0 {
		return
	}
	go r.loop()
}

func (r *Reaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.store.DeleteExpired(r.ttl); n > 0 {
				r.logger.Info("expired jobs evicted",
					slog.Int("count", n),
					slog.Duration("ttl", r.ttl))
			}
		case <-r.stopChan:
			return
		}
	}
}

// Stop halts the sweep loop. Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}
