package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
	"fable-server/internal/queue"
)

const idlePollDelay = 200 * time.Millisecond

// Worker потребляет ссылки на задания из очереди и выполняет их с
// ограничением параллелизма. Повторный вход в задание, которое уже
// обрабатывается этим процессом, блокируется in-memory реестром.
type Worker struct {
	queue       interfaces.Queue
	jobs        interfaces.JobRepository
	handlers    *Handlers
	recorder    interfaces.FailureRecorder
	concurrency int
	maxRetries  int
	logger      *zap.Logger

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
	wg      sync.WaitGroup
}

// New создает воркер.
func New(q interfaces.Queue, jobs interfaces.JobRepository, handlers *Handlers, recorder interfaces.FailureRecorder, concurrency, maxRetries int, logger *zap.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Worker{
		queue:       q,
		jobs:        jobs,
		handlers:    handlers,
		recorder:    recorder,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		logger:      logger.Named("Worker"),
		running:     make(map[uuid.UUID]struct{}),
	}
}

// Run крутит цикл опроса до отмены контекста, затем дожидается
// in-flight обработчиков не дольше grace.
func (w *Worker) Run(ctx context.Context, grace time.Duration) {
	w.logger.Info("worker started", zap.Int("concurrency", w.concurrency))

	for {
		select {
		case <-ctx.Done():
			w.drain(grace)
			return
		default:
		}

		if w.inFlight() >= w.concurrency {
			sleepCtx(ctx, idlePollDelay)
			continue
		}

		message, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("queue pop failed", zap.Error(err))
			sleepCtx(ctx, idlePollDelay)
			continue
		}
		if message == "" {
			sleepCtx(ctx, idlePollDelay)
			continue
		}

		envelope, err := queue.DecodeEnvelope(message)
		if err != nil {
			w.logger.Warn("dropping malformed queue message", zap.Error(err))
			continue
		}
		jobID, err := uuid.Parse(envelope.JobID)
		if err != nil {
			w.logger.Warn("dropping message with invalid job id", zap.String("jobId", envelope.JobID))
			continue
		}

		if !w.markRunning(jobID) {
			w.logger.Info("job already in flight, skipping", zap.String("jobID", jobID.String()))
			continue
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.clearRunning(jobID)
			w.handle(ctx, jobID)
		}()
	}
}

// handle выполняет одно задание от захвата до финального статуса.
func (w *Worker) handle(ctx context.Context, jobID uuid.UUID) {
	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	job, err := w.jobs.ClaimJob(ctx, jobID)
	if err != nil {
		w.logger.Error("job claim failed", zap.String("jobID", jobID.String()), zap.Error(err))
		return
	}
	if job == nil {
		claimMisses.Inc()
		w.logger.Info("claim miss, job taken or not pending", zap.String("jobID", jobID.String()))
		return
	}

	if !job.HasValidShape() || !job.IsValidType() {
		w.failTerminal(ctx, job, "invalid_job_row_shape")
		return
	}

	start := time.Now()
	resultURI, err := w.handlers.Handle(ctx, job)
	jobDuration.WithLabelValues(string(job.JobType)).Observe(time.Since(start).Seconds())

	if err != nil {
		w.applyFailurePolicy(ctx, job, err)
		return
	}

	if err := w.jobs.CompleteJob(ctx, job.ID, resultURI); err != nil {
		w.logger.Error("job completion write failed",
			zap.String("jobID", job.ID.String()),
			zap.Error(err),
		)
		jobsProcessed.WithLabelValues(string(job.JobType), "error").Inc()
		return
	}

	jobsProcessed.WithLabelValues(string(job.JobType), "completed").Inc()
	w.logger.Info("job completed",
		zap.String("jobID", job.ID.String()),
		zap.String("jobType", string(job.JobType)),
		zap.String("resultURI", resultURI),
		zap.Duration("duration", time.Since(start)),
	)
}

// applyFailurePolicy инкрементирует счетчик попыток и помечает задание
// как временно или окончательно проваленное. Временно проваленное
// задание остается в статусе failed: реконсилятор переопубликовывает
// только pending задания, так что в очередь его возвращает оператор.
func (w *Worker) applyFailurePolicy(ctx context.Context, job *models.GenerationJob, cause error) {
	attempt, err := w.jobs.IncrementRetry(ctx, job.ID)
	if err != nil {
		w.logger.Error("retry increment failed", zap.String("jobID", job.ID.String()), zap.Error(err))
		attempt = job.RetryCount + 1
	}

	if attempt < w.maxRetries {
		reason := fmt.Sprintf("temporary_error: %s", cause.Error())
		if err := w.jobs.FailJob(ctx, job.ID, reason); err != nil {
			w.logger.Error("temporary failure write failed", zap.String("jobID", job.ID.String()), zap.Error(err))
		}
		jobsProcessed.WithLabelValues(string(job.JobType), "temporary_error").Inc()
		w.logger.Warn("job failed, retry possible",
			zap.String("jobID", job.ID.String()),
			zap.String("jobType", string(job.JobType)),
			zap.Int("attempt", attempt),
			zap.Error(cause),
		)
		return
	}

	reason := fmt.Sprintf("permanent_error: %s", cause.Error())
	if err := w.jobs.FailJob(ctx, job.ID, reason); err != nil {
		w.logger.Error("permanent failure write failed", zap.String("jobID", job.ID.String()), zap.Error(err))
	}
	if recErr := w.recorder.RecordFailure(ctx, interfaces.FailureContext{
		JobID:    job.ID.String(),
		StoryRef: job.StoryID.String(),
		Stage:    string(job.JobType),
		Attempt:  attempt,
	}, cause); recErr != nil {
		w.logger.Error("failure record write failed", zap.String("jobID", job.ID.String()), zap.Error(recErr))
	}
	jobsProcessed.WithLabelValues(string(job.JobType), "permanent_error").Inc()
	w.logger.Error("job failed permanently",
		zap.String("jobID", job.ID.String()),
		zap.String("jobType", string(job.JobType)),
		zap.Int("attempt", attempt),
		zap.Error(cause),
	)
}

// failTerminal проваливает задание без политики повторов: структурные
// дефекты строки не лечатся повторным запуском.
func (w *Worker) failTerminal(ctx context.Context, job *models.GenerationJob, reason string) {
	if err := w.jobs.FailJob(ctx, job.ID, reason); err != nil {
		w.logger.Error("terminal failure write failed", zap.String("jobID", job.ID.String()), zap.Error(err))
	}
	jobsProcessed.WithLabelValues(string(job.JobType), "invalid").Inc()
	w.logger.Error("job rejected", zap.String("jobID", job.ID.String()), zap.String("reason", reason))
}

func (w *Worker) drain(grace time.Duration) {
	w.logger.Info("worker draining", zap.Duration("grace", grace))
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("all handlers finished")
	case <-time.After(grace):
		w.logger.Warn("shutdown grace expired with handlers in flight", zap.Int("inFlight", w.inFlight()))
	}
}

func (w *Worker) markRunning(jobID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.running[jobID]; ok {
		return false
	}
	w.running[jobID] = struct{}{}
	return true
}

func (w *Worker) clearRunning(jobID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.running, jobID)
}

func (w *Worker) inFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.running)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
