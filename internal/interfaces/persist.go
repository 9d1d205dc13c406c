package interfaces

import (
	"context"

	"fable-server/internal/models"
)

//go:generate mockery --name Persister --output ../mocks --outpkg mocks --case=underscore

// Persister записывает результат текстового пайплайна и возвращает
// идентификаторы созданных медиа-заданий.
type Persister interface {
	Persist(ctx context.Context, storyRef, theme string, story *models.StoryDraft, translation *models.TranslationResult, vocab *models.VocabularyResult) ([]string, error)
}
