package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Константы для операций над историями
const (
	// Диспатч создает черновик истории заранее, поэтому запись
	// бандла обновляет существующую строку по id.
	insertStoryQuery = `
        INSERT INTO stories (id, title_en, title_zh, theme, status, age_range, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        ON CONFLICT (id) DO UPDATE SET
            title_en = EXCLUDED.title_en,
            title_zh = EXCLUDED.title_zh,
            theme = EXCLUDED.theme,
            status = EXCLUDED.status,
            age_range = EXCLUDED.age_range,
            metadata = EXCLUDED.metadata,
            updated_at = EXCLUDED.updated_at
    `
	insertDraftStoryQuery = `
        INSERT INTO stories (id, title_en, title_zh, theme, status, age_range, metadata, created_at, updated_at)
        VALUES ($1, $2, '', $3, 'draft', $4, '{}'::jsonb, $5, $5)
    `
	insertPageQuery = `
        INSERT INTO story_pages (id, story_id, page_number, text_en, text_zh, word_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	insertVocabQuery = `
        INSERT INTO vocab_entries
            (id, story_id, word, part_of_speech, definition_en, definition_zh, example_sentence, example_translation, cefr_level, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	getStoryQuery = `
        SELECT id, title_en, title_zh, theme, status, age_range, metadata, created_at, updated_at
        FROM stories
        WHERE id = $1
    `
)

// Compile-time check
var _ interfaces.StoryRepository = (*PgStoryRepository)(nil)

// PgStoryRepository реализует интерфейс StoryRepository для PostgreSQL.
// Держит пул напрямую, так как PersistStoryBundle открывает транзакцию.
type PgStoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStoryRepository создает новый экземпляр репозитория историй.
func NewPgStoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgStoryRepository {
	return &PgStoryRepository{
		pool:   pool,
		logger: logger.Named("PgStoryRepo"),
	}
}

// PersistStoryBundle записывает историю, страницы, словарь и pending
// медиа-задания в одной транзакции. При любой ошибке транзакция
// откатывается целиком и ids не возвращаются.
func (r *PgStoryRepository) PersistStoryBundle(ctx context.Context, story *models.Story, pages []*models.StoryPage, vocab []*models.VocabEntry, seeds []interfaces.MediaJobSeed) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	story.CreatedAt = now
	story.UpdatedAt = now

	metadata := story.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	_, err = tx.Exec(ctx, insertStoryQuery,
		story.ID, story.TitleEn, story.TitleZh, story.Theme, story.Status, story.AgeRange, metadata, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert story: %w", err)
	}

	for _, page := range pages {
		if page.ID == uuid.Nil {
			page.ID = uuid.New()
		}
		page.StoryID = story.ID
		_, err = tx.Exec(ctx, insertPageQuery,
			page.ID, page.StoryID, page.PageNumber, page.TextEn, page.TextZh, page.WordCount, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert story page %d: %w", page.PageNumber, err)
		}
	}

	for _, entry := range vocab {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.StoryID = story.ID
		var cefr *string
		if entry.CEFRLevel != "" {
			cefr = &entry.CEFRLevel
		}
		_, err = tx.Exec(ctx, insertVocabQuery,
			entry.ID, entry.StoryID, entry.Word, entry.PartOfSpeech,
			entry.DefinitionEn, entry.DefinitionZh, entry.ExampleSentence, entry.ExampleTranslation,
			cefr, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert vocab entry %q: %w", entry.Word, err)
		}
	}

	jobIDs := make([]uuid.UUID, 0, len(seeds))
	for _, seed := range seeds {
		payloadJSON, err := json.Marshal(seed.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal media job payload: %w", err)
		}
		jobID := uuid.New()
		_, err = tx.Exec(ctx, createJobQuery, jobID, story.ID, seed.JobType, payloadJSON, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert media job (%s): %w", seed.JobType, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit story bundle: %w", err)
	}

	r.logger.Info("story bundle persisted",
		zap.String("storyID", story.ID.String()),
		zap.Int("pages", len(pages)),
		zap.Int("vocabEntries", len(vocab)),
		zap.Int("mediaJobs", len(jobIDs)),
	)
	return jobIDs, nil
}

// CreateDraftStory вставляет черновик истории. Черновик держит FK для
// задания story_script, пока текстовый пайплайн не запишет полный бандл.
func (r *PgStoryRepository) CreateDraftStory(ctx context.Context, id uuid.UUID, theme, ageRange string) error {
	title := "Untitled (" + theme + ")"
	now := time.Now().UTC()
	if _, err := r.pool.Exec(ctx, insertDraftStoryQuery, id, title, theme, ageRange, now); err != nil {
		return fmt.Errorf("failed to insert draft story: %w", err)
	}
	return nil
}

// GetStory возвращает историю по id или models.ErrNotFound.
func (r *PgStoryRepository) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := r.pool.QueryRow(ctx, getStoryQuery, id).Scan(
		&story.ID,
		&story.TitleEn,
		&story.TitleZh,
		&story.Theme,
		&story.Status,
		&story.AgeRange,
		&story.Metadata,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return &story, nil
}
