package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StoryStatus определяет жизненный цикл истории.
// Совпадает с типом ENUM 'story_status' в БД.
type StoryStatus string

const (
	StoryStatusDraft      StoryStatus = "draft"      // Черновик
	StoryStatusScheduled  StoryStatus = "scheduled"  // Запланирована к публикации
	StoryStatusProcessing StoryStatus = "processing" // Идет генерация контента
	StoryStatusPublished  StoryStatus = "published"  // Опубликована (выставляется админом)
	StoryStatusFailed     StoryStatus = "failed"     // Генерация провалилась
)

// Story представляет историю в базе данных. Агрегатный корень:
// страницы, словарь, задания и медиа-ассеты каскадно принадлежат ей.
type Story struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TitleEn   string          `json:"titleEn" db:"title_en"`
	TitleZh   string          `json:"titleZh" db:"title_zh"`
	Theme     string          `json:"theme" db:"theme"`
	Status    StoryStatus     `json:"status" db:"status"`
	AgeRange  string          `json:"ageRange" db:"age_range"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"` // Синопсисы, originalStoryId и прочее
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// StoryPage представляет одну страницу истории. Ровно 10 страниц на
// историю, page_number уникален внутри истории.
type StoryPage struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	StoryID      uuid.UUID  `json:"storyId" db:"story_id"`
	PageNumber   int        `json:"pageNumber" db:"page_number"` // 1..10
	TextEn       string     `json:"textEn" db:"text_en"`
	TextZh       string     `json:"textZh" db:"text_zh"`
	WordCount    int        `json:"wordCount" db:"word_count"` // Количество слов в английском тексте
	ImageAssetID *uuid.UUID `json:"imageAssetId,omitempty" db:"image_asset_id"`
	AudioAssetID *uuid.UUID `json:"audioAssetId,omitempty" db:"audio_asset_id"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// VocabEntry — словарная запись истории, ровно 10 на историю.
type VocabEntry struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	StoryID            uuid.UUID `json:"storyId" db:"story_id"`
	Word               string    `json:"word" db:"word"`
	PartOfSpeech       string    `json:"partOfSpeech" db:"part_of_speech"`
	DefinitionEn       string    `json:"definitionEn" db:"definition_en"`
	DefinitionZh       string    `json:"definitionZh" db:"definition_zh"`
	ExampleSentence    string    `json:"exampleSentence" db:"example_sentence"`
	ExampleTranslation string    `json:"exampleTranslation" db:"example_translation"`
	CEFRLevel          string    `json:"cefrLevel,omitempty" db:"cefr_level"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}
