package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/chefguard/internal/metrics"
)

// AttemptPurger deletes attempt records older than a cutoff
type AttemptPurger interface {
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper drops expired in-memory throttle windows
type Sweeper interface {
	Sweep(now time.Time) int
}

// CleanupManager periodically purges attempt records that can no longer
// influence a decision and sweeps expired in-memory throttle entries.
type CleanupManager struct {
	purger    AttemptPurger
	sweepers  []Sweeper
	retention time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager. Records older than
// retention are deleted on every tick.
func NewCleanupManager(
	purger AttemptPurger,
	retention time.Duration,
	interval time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
	sweepers ...Sweeper,
) *CleanupManager {
	return &CleanupManager{
		purger:    purger,
		sweepers:  sweepers,
		retention: retention,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single purge and sweep
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	now := cm.now()

	swept := 0
	for _, s := range cm.sweepers {
		swept += s.Sweep(now)
	}

	if cm.purger == nil {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.purger.DeleteAttemptsBefore(cleanupCtx, now.Add(-cm.retention))
	if err != nil {
		cm.logger.Error("failed to purge expired attempts", slog.Any("error", err))
		return
	}

	cm.metrics.Purged(rowsDeleted)
	if rowsDeleted > 0 || swept > 0 {
		cm.logger.Info("attempt cleanup completed",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Int("throttle_entries_swept", swept))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
