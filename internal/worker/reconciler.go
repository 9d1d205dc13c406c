package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/queue"
)

const reconcileBatchLimit = 100

// Reconciler переопубликовывает зависшие pending задания. Закрывает
// дыру между коммитом бандла и публикацией в очередь: строки уже в
// базе, но сообщение о них могло потеряться.
type Reconciler struct {
	jobs     interfaces.JobRepository
	queue    interfaces.Queue
	interval time.Duration
	staleAge time.Duration
	logger   *zap.Logger
}

// NewReconciler создает реконсилятор.
func NewReconciler(jobs interfaces.JobRepository, q interfaces.Queue, interval, staleAge time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		jobs:     jobs,
		queue:    q,
		interval: interval,
		staleAge: staleAge,
		logger:   logger.Named("Reconciler"),
	}
}

// Run тикает до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	stale, err := r.jobs.FindStalePending(ctx, r.staleAge, reconcileBatchLimit)
	if err != nil {
		r.logger.Error("stale pending scan failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	pushed := 0
	for _, job := range stale {
		message, err := queue.NewEnvelope(job.ID.String()).Encode()
		if err == nil {
			err = r.queue.Push(ctx, message)
		}
		if err != nil {
			r.logger.Error("stale job re-publish failed",
				zap.String("jobID", job.ID.String()),
				zap.Error(err),
			)
			continue
		}
		pushed++
		reconciledJobs.Inc()
	}
	r.logger.Info("stale pending jobs re-published",
		zap.Int("found", len(stale)),
		zap.Int("pushed", pushed),
	)
}
