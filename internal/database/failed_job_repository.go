package database

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Константы для операций над failed_jobs
const (
	insertFailedJobQuery = `
        INSERT INTO failed_jobs (id, job_id, error_code, error_message, resolved, created_at)
        VALUES ($1, $2, $3, $4, FALSE, $5)
    `
	listUnresolvedQuery = `
        SELECT id, job_id, error_code, error_message, resolved, created_at
        FROM failed_jobs
        WHERE NOT resolved
        ORDER BY created_at DESC
        LIMIT $1
    `
)

// Compile-time check
var _ interfaces.FailedJobRepository = (*PgFailedJobRepository)(nil)

// PgFailedJobRepository реализует интерфейс FailedJobRepository для PostgreSQL.
type PgFailedJobRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgFailedJobRepository создает новый экземпляр репозитория.
func NewPgFailedJobRepository(db interfaces.DBTX, logger *zap.Logger) *PgFailedJobRepository {
	return &PgFailedJobRepository{
		db:     db,
		logger: logger.Named("PgFailedJobRepo"),
	}
}

// Insert записывает одну аудитную строку о невосстановимой ошибке.
func (r *PgFailedJobRepository) Insert(ctx context.Context, row *models.FailedJob) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, insertFailedJobQuery,
		row.ID, row.JobID, row.ErrorCode, row.ErrorMessage, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert failed_jobs row: %w", err)
	}

	r.logger.Warn("failure recorded",
		zap.String("errorCode", row.ErrorCode),
		zap.String("failedJobID", row.ID.String()),
	)
	return nil
}

// ListUnresolved возвращает нерешенные ошибки, новые первыми.
func (r *PgFailedJobRepository) ListUnresolved(ctx context.Context, limit int) ([]*models.FailedJob, error) {
	rows := make([]*models.FailedJob, 0)
	if err := pgxscan.Select(ctx, r.db, &rows, listUnresolvedQuery, limit); err != nil {
		return nil, fmt.Errorf("failed to select unresolved failed_jobs: %w", err)
	}
	return rows, nil
}
