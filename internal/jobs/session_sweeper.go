package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/metrics"
)

// ExpiringStore is a session store that needs expired entries removed
// explicitly. Redis expires keys on its own and does not need the sweeper.
type ExpiringStore interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweeper removes abandoned inventory sessions
type SessionSweeper struct {
	store    ExpiringStore
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(store ExpiringStore, m *metrics.Metrics, logger *logrus.Logger, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweeper until Stop is called or ctx is done
func (j *SessionSweeper) Start(ctx context.Context) {
	j.logger.Info("Session sweeper started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-j.stopCh:
			j.logger.Info("Session sweeper stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the sweeper to stop
func (j *SessionSweeper) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *SessionSweeper) sweep(ctx context.Context) {
	removed, err := j.store.SweepExpired(ctx)
	if err != nil {
		j.logger.Errorf("Failed to sweep expired inventory sessions: %v", err)
		return
	}
	if removed == 0 {
		return
	}

	j.metrics.SessionsSwept.Add(float64(removed))
	j.logger.Infof("Removed %d expired inventory sessions", removed)
}
