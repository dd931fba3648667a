package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/pkg/logger"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

type OutboxCleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// OutboxCleanupWorker deletes published events once they are older than the retention window.
type OutboxCleanupWorker struct {
	repo    repository.OutboxRepository
	config  OutboxCleanupConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, config OutboxCleanupConfig, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &OutboxCleanupWorker{
		repo:    repo,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, time.Now())
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context, now time.Time) int64 {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, now.Add(-w.config.Retention))
	if err != nil {
		w.logger.Error(err, "Failed to delete processed outbox events")
		return 0
	}
	if deleted > 0 {
		w.metrics.OutboxEventsDeleted.Add(float64(deleted))
		w.logger.Info("Deleted processed outbox events", "count", deleted)
	}
	return deleted
}
