package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
)

// WindowPruner drops rate windows that have fully elapsed
type WindowPruner interface {
	Prune(now time.Time) int
}

// QuotaPurger deletes usage counters older than a month key
type QuotaPurger interface {
	DeleteBefore(ctx context.Context, yearMonth string) (int64, error)
}

// CleanupConfig controls the janitor
type CleanupConfig struct {
	Interval        time.Duration
	RetentionMonths int // 0 keeps every month
}

// CleanupManager periodically prunes in-memory rate windows and purges quota
// counters past their retention. Either target may be nil.
type CleanupManager struct {
	windows WindowPruner
	quotas  QuotaPurger
	config  CleanupConfig
	logger  *slog.Logger
	now     func() time.Time
	stopCh  chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(windows WindowPruner, quotas QuotaPurger, config CleanupConfig, logger *slog.Logger) *CleanupManager {
	return &CleanupManager{
		windows: windows,
		quotas:  quotas,
		config:  config,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

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

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	now := cm.now()

	if cm.windows != nil {
		if pruned := cm.windows.Prune(now); pruned > 0 {
			cm.logger.Debug("pruned rate windows", slog.Int("count", pruned))
		}
	}

	if cm.quotas == nil || cm.config.RetentionMonths <= 0 {
		return
	}

	cutoff := RetentionCutoff(now, cm.config.RetentionMonths)

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.quotas.DeleteBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge quota counters", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("quota counter purge completed",
			slog.String("before", cutoff),
			slog.Int64("rows_deleted", rowsDeleted))
	}
}

// RetentionCutoff returns the oldest month key still retained when keeping
// the given number of months, current month included
func RetentionCutoff(now time.Time, months int) string {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	return models.YearMonth(first.AddDate(0, -(months - 1), 0))
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
