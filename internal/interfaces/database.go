package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fable-server/internal/models"
)

// DBTX абстрагирует pgxpool.Pool и pgx.Tx, чтобы репозитории работали
// как с пулом, так и внутри транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MediaJobSeed описывает одно медиа-задание, создаваемое вместе с
// историей внутри транзакции PersistStoryBundle.
type MediaJobSeed struct {
	JobType models.JobType
	Payload map[string]any
}

//go:generate mockery --name JobRepository --output ../mocks --outpkg mocks --case=underscore
type JobRepository interface {
	// CreateJob inserts one pending job and returns its id.
	CreateJob(ctx context.Context, storyID uuid.UUID, jobType models.JobType, payload map[string]any) (uuid.UUID, error)

	// ClaimJob atomically transitions a pending job to processing and
	// returns the claimed row. Returns nil (and no error) when the job
	// does not exist or is not pending.
	ClaimJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error)

	// CompleteJob sets status=completed and stores the result pointer.
	CompleteJob(ctx context.Context, jobID uuid.UUID, resultURI string) error

	// FailJob sets status=failed; reason is truncated to 512 chars.
	FailJob(ctx context.Context, jobID uuid.UUID, reason string) error

	// IncrementRetry bumps retry_count and returns the new value.
	IncrementRetry(ctx context.Context, jobID uuid.UUID) (int, error)

	// FindStalePending returns pending jobs untouched for longer than age.
	FindStalePending(ctx context.Context, age time.Duration, limit int) ([]*models.GenerationJob, error)
}

//go:generate mockery --name StoryRepository --output ../mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// PersistStoryBundle writes the story (updating the row when one with
	// the same id already exists, e.g. the dispatch draft), inserts its
	// pages, vocab entries and one pending job per media seed in a single
	// transaction. Returns
	// the created media job ids in seed order.
	PersistStoryBundle(ctx context.Context, story *models.Story, pages []*models.StoryPage, vocab []*models.VocabEntry, seeds []MediaJobSeed) ([]uuid.UUID, error)

	// CreateDraftStory inserts a placeholder row the dispatch API can
	// point the story_script job at before the pipeline runs.
	CreateDraftStory(ctx context.Context, id uuid.UUID, theme, ageRange string) error

	GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error)
}

//go:generate mockery --name AssetRepository --output ../mocks --outpkg mocks --case=underscore
type AssetRepository interface {
	// InsertAssetIfAbsent is idempotent on generating_job_id: when a row
	// for the job already exists, the existing row is returned.
	InsertAssetIfAbsent(ctx context.Context, asset *models.MediaAsset) (*models.MediaAsset, error)
}

//go:generate mockery --name FailedJobRepository --output ../mocks --outpkg mocks --case=underscore
type FailedJobRepository interface {
	Insert(ctx context.Context, row *models.FailedJob) error
	ListUnresolved(ctx context.Context, limit int) ([]*models.FailedJob, error)
}
