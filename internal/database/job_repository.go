package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Максимальная длина причины отказа в generation_jobs.failure_reason.
const maxFailureReasonLen = 512

// Константы для операций над заданиями
const (
	createJobQuery = `
        INSERT INTO generation_jobs (id, story_id, job_type, status, retry_count, payload, created_at, updated_at)
        VALUES ($1, $2, $3, 'pending', 0, $4, $5, $5)
        RETURNING id
    `
	claimJobQuery = `
        UPDATE generation_jobs
        SET status = 'processing', updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING id, story_id, job_type, status, retry_count, payload, result_uri, failure_reason, created_at, updated_at
    `
	getJobQuery = `
        SELECT id, story_id, job_type, status, retry_count, payload, result_uri, failure_reason, created_at, updated_at
        FROM generation_jobs
        WHERE id = $1
    `
	completeJobQuery = `
        UPDATE generation_jobs
        SET status = 'completed', result_uri = $2, updated_at = NOW()
        WHERE id = $1
    `
	failJobQuery = `
        UPDATE generation_jobs
        SET status = 'failed', failure_reason = $2, updated_at = NOW()
        WHERE id = $1
    `
	incrementRetryQuery = `
        UPDATE generation_jobs
        SET retry_count = retry_count + 1, updated_at = NOW()
        WHERE id = $1
        RETURNING retry_count
    `
	findStalePendingQuery = `
        SELECT id, story_id, job_type, status, retry_count, payload, result_uri, failure_reason, created_at, updated_at
        FROM generation_jobs
        WHERE status = 'pending' AND updated_at < $1
        ORDER BY updated_at ASC
        LIMIT $2
    `
)

// Compile-time check
var _ interfaces.JobRepository = (*PgJobRepository)(nil)

// PgJobRepository реализует интерфейс JobRepository для PostgreSQL.
type PgJobRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgJobRepository создает новый экземпляр репозитория заданий.
func NewPgJobRepository(db interfaces.DBTX, logger *zap.Logger) *PgJobRepository {
	return &PgJobRepository{
		db:     db,
		logger: logger.Named("PgJobRepo"),
	}
}

func scanJob(row pgx.Row) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := row.Scan(
		&job.ID,
		&job.StoryID,
		&job.JobType,
		&job.Status,
		&job.RetryCount,
		&job.Payload,
		&job.ResultURI,
		&job.FailureReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan generation_jobs row: %w", err)
	}
	return &job, nil
}

// CreateJob вставляет одно задание в статусе pending и возвращает его id.
func (r *PgJobRepository) CreateJob(ctx context.Context, storyID uuid.UUID, jobType models.JobType, payload map[string]any) (uuid.UUID, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	id := uuid.New()
	now := time.Now().UTC()

	var createdID uuid.UUID
	err = r.db.QueryRow(ctx, createJobQuery, id, storyID, jobType, payloadJSON, now).Scan(&createdID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert generation job: %w", err)
	}

	r.logger.Info("generation job created",
		zap.String("jobID", createdID.String()),
		zap.String("storyID", storyID.String()),
		zap.String("jobType", string(jobType)),
	)
	return createdID, nil
}

// ClaimJob атомарно переводит pending задание в processing одним
// условным UPDATE ... RETURNING. Возвращает nil без ошибки, если
// задание не существует или уже не pending.
func (r *PgJobRepository) ClaimJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, claimJobQuery, jobID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			r.logger.Info("claim miss", zap.String("jobID", jobID.String()))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	return job, nil
}

// GetJob возвращает задание по id или models.ErrNotFound.
func (r *PgJobRepository) GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, getJobQuery, jobID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// CompleteJob помечает задание выполненным и сохраняет указатель на результат.
func (r *PgJobRepository) CompleteJob(ctx context.Context, jobID uuid.UUID, resultURI string) error {
	tag, err := r.db.Exec(ctx, completeJobQuery, jobID, resultURI)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("job completed", zap.String("jobID", jobID.String()), zap.String("resultURI", resultURI))
	return nil
}

// FailJob помечает задание проваленным. Причина обрезается до 512 символов.
func (r *PgJobRepository) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	if runes := []rune(reason); len(runes) > maxFailureReasonLen {
		reason = string(runes[:maxFailureReasonLen])
	}
	tag, err := r.db.Exec(ctx, failJobQuery, jobID, reason)
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Warn("job failed", zap.String("jobID", jobID.String()), zap.String("reason", reason))
	return nil
}

// IncrementRetry монотонно увеличивает retry_count и возвращает новое значение.
func (r *PgJobRepository) IncrementRetry(ctx context.Context, jobID uuid.UUID) (int, error) {
	var retryCount int
	err := r.db.QueryRow(ctx, incrementRetryQuery, jobID).Scan(&retryCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment retry for job %s: %w", jobID, err)
	}
	return retryCount, nil
}

// FindStalePending возвращает pending задания, не менявшиеся дольше age.
func (r *PgJobRepository) FindStalePending(ctx context.Context, age time.Duration, limit int) ([]*models.GenerationJob, error) {
	cutoff := time.Now().UTC().Add(-age)
	jobs := make([]*models.GenerationJob, 0)
	if err := pgxscan.Select(ctx, r.db, &jobs, findStalePendingQuery, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to select stale pending jobs: %w", err)
	}
	return jobs, nil
}
