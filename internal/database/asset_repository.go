package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Константы для операций над медиа-ассетами
const (
	insertAssetQuery = `
        INSERT INTO media_assets
            (id, story_id, page_id, media_type, uri, format, duration_seconds, metadata, generating_job_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (generating_job_id) DO NOTHING
    `
	getAssetByJobQuery = `
        SELECT id, story_id, page_id, media_type, uri, format, duration_seconds, metadata, generating_job_id, created_at
        FROM media_assets
        WHERE generating_job_id = $1
    `
)

// Compile-time check
var _ interfaces.AssetRepository = (*PgAssetRepository)(nil)

// PgAssetRepository реализует интерфейс AssetRepository для PostgreSQL.
type PgAssetRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgAssetRepository создает новый экземпляр репозитория ассетов.
func NewPgAssetRepository(db interfaces.DBTX, logger *zap.Logger) *PgAssetRepository {
	return &PgAssetRepository{
		db:     db,
		logger: logger.Named("PgAssetRepo"),
	}
}

// InsertAssetIfAbsent идемпотентно вставляет ассет: при конфликте по
// generating_job_id вставка пропускается и возвращается существующая строка.
func (r *PgAssetRepository) InsertAssetIfAbsent(ctx context.Context, asset *models.MediaAsset) (*models.MediaAsset, error) {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	asset.CreatedAt = time.Now().UTC()

	metadata := asset.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	_, err := r.db.Exec(ctx, insertAssetQuery,
		asset.ID, asset.StoryID, asset.PageID, asset.MediaType, asset.URI, asset.Format,
		asset.DurationSeconds, metadata, asset.GeneratingJobID, asset.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert media asset: %w", err)
	}

	stored, err := r.getByGeneratingJob(ctx, asset)
	if err != nil {
		return nil, err
	}
	if stored.ID != asset.ID {
		r.logger.Info("asset insert skipped, existing row returned",
			zap.String("generatingJobID", asset.GeneratingJobID.String()),
			zap.String("assetID", stored.ID.String()),
		)
	}
	return stored, nil
}

func (r *PgAssetRepository) getByGeneratingJob(ctx context.Context, asset *models.MediaAsset) (*models.MediaAsset, error) {
	var stored models.MediaAsset
	err := r.db.QueryRow(ctx, getAssetByJobQuery, asset.GeneratingJobID).Scan(
		&stored.ID,
		&stored.StoryID,
		&stored.PageID,
		&stored.MediaType,
		&stored.URI,
		&stored.Format,
		&stored.DurationSeconds,
		&stored.Metadata,
		&stored.GeneratingJobID,
		&stored.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to re-select media asset: %w", err)
	}
	return &stored, nil
}
