/*
scheduler.go - Background retry of failed ledger saves

PURPOSE:
  A check-in whose save failed stays in memory and is reported to the
  client as a warning. This scheduler periodically retries those saves
  so the ledger reaches the store without waiting for the user's next
  check-in.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only sessions whose last save failed are retried
  - Stop waits for an in-flight pass to finish

CONFIGURATION:
  - CheckInterval: How often to retry (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSaveRetryScheduler(registry, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - streak/registry.go: RetryPending
  - handlers.go: SubmitCheckIn warning
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/streak"
)

// SaveRetryScheduler retries failed ledger saves.
type SaveRetryScheduler struct {
	Sessions      *streak.Registry
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSaveRetryScheduler creates a new scheduler.
func NewSaveRetryScheduler(sessions *streak.Registry, logger *zap.Logger) *SaveRetryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaveRetryScheduler{
		Sessions:      sessions,
		Logger:        logger.Named("save-retry"),
		CheckInterval: time.Minute,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (rs *SaveRetryScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler.
func (rs *SaveRetryScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("stopped")
	}
}

func (rs *SaveRetryScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			rs.RetryOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RetryOnce runs a single retry pass and returns how many sessions were
// retried.
func (rs *SaveRetryScheduler) RetryOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, rs.CheckInterval)
	defer cancel()

	retried, err := rs.Sessions.RetryPending(ctx)
	switch {
	case err != nil:
		rs.Logger.Warn("ledger saves still failing", zap.Int("retried", retried), zap.Error(err))
	case retried > 0:
		rs.Logger.Info("pending ledgers saved", zap.Int("retried", retried))
	}
	return retried
}
