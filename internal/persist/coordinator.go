package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/failure"
	"fable-server/internal/interfaces"
	"fable-server/internal/models"
	"fable-server/internal/queue"
)

const defaultAgeRange = "3-6"

// Compile-time check
var _ interfaces.Persister = (*Coordinator)(nil)

// Coordinator записывает историю, страницы, словарь и медиа-задания в
// одной транзакции, после коммита публикует ссылки на задания в очередь.
type Coordinator struct {
	stories  interfaces.StoryRepository
	failed   interfaces.FailedJobRepository
	queue    interfaces.Queue
	skipMode bool
	logger   *zap.Logger
}

// NewCoordinator создает координатор персистентности. skipMode
// включает режим разработки без I/O.
func NewCoordinator(stories interfaces.StoryRepository, failed interfaces.FailedJobRepository, q interfaces.Queue, skipMode bool, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		stories:  stories,
		failed:   failed,
		queue:    q,
		skipMode: skipMode,
		logger:   logger.Named("PersistCoordinator"),
	}
}

// Persist — единственная точка входа. Возвращает идентификаторы
// созданных медиа-заданий в порядке страниц, изображение раньше аудио.
func (c *Coordinator) Persist(ctx context.Context, storyRef, theme string, story *models.StoryDraft, translation *models.TranslationResult, vocab *models.VocabularyResult) ([]string, error) {
	if c.skipMode {
		return syntheticJobIDs(storyRef, story), nil
	}

	storyID, originalRef := canonicalStoryID(storyRef)

	metadata := map[string]any{
		"synopsisEn": story.SynopsisEn,
		"synopsisZh": translation.SynopsisZh,
	}
	if originalRef != "" {
		metadata["originalStoryId"] = originalRef
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal story metadata: %w", err)
	}

	titleZh := translation.TitleZh
	if titleZh == "" {
		titleZh = story.TitleEn
	}

	storyRow := &models.Story{
		ID:       storyID,
		TitleEn:  story.TitleEn,
		TitleZh:  titleZh,
		Theme:    theme,
		Status:   models.StoryStatusProcessing,
		AgeRange: defaultAgeRange,
		Metadata: metadataJSON,
	}

	translatedByPage := make(map[int]string, len(translation.Pages))
	for _, p := range translation.Pages {
		translatedByPage[p.PageNumber] = p.TextZh
	}

	pages := make([]*models.StoryPage, 0, len(story.Pages))
	seeds := make([]interfaces.MediaJobSeed, 0, len(story.Pages)*2)
	for _, p := range story.Pages {
		textZh := translatedByPage[p.PageNumber]
		pages = append(pages, &models.StoryPage{
			PageNumber: p.PageNumber,
			TextEn:     p.TextEn,
			TextZh:     textZh,
			WordCount:  len(strings.Fields(p.TextEn)),
		})

		seeds = append(seeds,
			interfaces.MediaJobSeed{
				JobType: models.JobTypeImage,
				Payload: map[string]any{
					"pageNumber": p.PageNumber,
					"textEn":     p.TextEn,
				},
			},
			interfaces.MediaJobSeed{
				JobType: models.JobTypeAudio,
				Payload: map[string]any{
					"pageNumber": p.PageNumber,
					"textEn":     p.TextEn,
					"textZh":     textZh,
				},
			},
		)
	}

	vocabRows := make([]*models.VocabEntry, 0, len(vocab.Entries))
	for _, e := range vocab.Entries {
		vocabRows = append(vocabRows, &models.VocabEntry{
			Word:               e.Word,
			PartOfSpeech:       e.PartOfSpeech,
			DefinitionEn:       e.DefinitionEn,
			DefinitionZh:       e.DefinitionZh,
			ExampleSentence:    e.ExampleSentence,
			ExampleTranslation: e.ExampleTranslation,
			CEFRLevel:          e.CEFRLevel,
		})
	}

	jobIDs, err := c.stories.PersistStoryBundle(ctx, storyRow, pages, vocabRows, seeds)
	if err != nil {
		c.recordFailure(ctx, storyRef, failure.StagePersistence, err, nil)
		return nil, fmt.Errorf("failed to persist story bundle: %w", err)
	}

	ids := make([]string, 0, len(jobIDs))
	for _, id := range jobIDs {
		ids = append(ids, id.String())
	}

	c.pushJobs(ctx, storyRef, ids)
	return ids, nil
}

// pushJobs публикует ссылки на задания после коммита одним батчем.
// Ошибка пуша не откатывает запись: задания уже в базе и могут быть
// переопубликованы.
func (c *Coordinator) pushJobs(ctx context.Context, storyRef string, jobIDs []string) {
	messages := make([]string, 0, len(jobIDs))
	for _, id := range jobIDs {
		message, err := queue.NewEnvelope(id).Encode()
		if err != nil {
			c.logger.Error("media job envelope encode failed",
				zap.String("storyRef", storyRef),
				zap.String("jobID", id),
				zap.Error(err),
			)
			c.recordFailure(ctx, storyRef, failure.StageUpstashPush, err, map[string]any{
				"pushedJobCount": 0,
			})
			return
		}
		messages = append(messages, message)
	}

	if err := c.queue.PushBatch(ctx, messages); err != nil {
		c.logger.Error("media job batch push failed",
			zap.String("storyRef", storyRef),
			zap.Int("jobCount", len(messages)),
			zap.Error(err),
		)
		c.recordFailure(ctx, storyRef, failure.StageUpstashPush, err, map[string]any{
			"pushedJobCount": 0,
		})
		return
	}
	c.logger.Info("media jobs pushed", zap.String("storyRef", storyRef), zap.Int("count", len(messages)))
}

func (c *Coordinator) recordFailure(ctx context.Context, storyRef, stage string, cause error, extra map[string]any) {
	message := cause.Error()
	if len(extra) != 0 {
		if data, err := json.Marshal(extra); err == nil {
			message = fmt.Sprintf("%s %s", message, data)
		}
	}
	row := &models.FailedJob{
		ErrorCode:    stage,
		ErrorMessage: fmt.Sprintf("story=%s: %s", storyRef, message),
	}
	if err := c.failed.Insert(ctx, row); err != nil {
		c.logger.Error("failed to insert failure row", zap.String("stage", stage), zap.Error(err))
	}
}

// canonicalStoryID возвращает UUID истории. Невалидная ссылка
// заменяется новым UUID, а исходное значение уходит в metadata.
func canonicalStoryID(storyRef string) (uuid.UUID, string) {
	if id, err := uuid.Parse(storyRef); err == nil {
		return id, ""
	}
	return uuid.New(), storyRef
}

// syntheticJobIDs — режим разработки: идентификаторы вида
// {storyRef}-{image|audio}-{pageNumber} без какого-либо I/O.
func syntheticJobIDs(storyRef string, story *models.StoryDraft) []string {
	ids := make([]string, 0, len(story.Pages)*2)
	for _, p := range story.Pages {
		ids = append(ids,
			fmt.Sprintf("%s-image-%d", storyRef, p.PageNumber),
			fmt.Sprintf("%s-audio-%d", storyRef, p.PageNumber),
		)
	}
	return ids
}
