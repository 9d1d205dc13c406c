package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MediaType определяет вид медиа-артефакта.
// Совпадает с типом ENUM 'media_type' в БД.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// MediaAsset — произведенный артефакт. Не более одного ассета на
// порождающее задание: вставка идемпотентна по generating_job_id.
type MediaAsset struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	StoryID         uuid.UUID       `json:"storyId" db:"story_id"`
	PageID          *uuid.UUID      `json:"pageId,omitempty" db:"page_id"`
	MediaType       MediaType       `json:"mediaType" db:"media_type"`
	URI             string          `json:"uri" db:"uri"`
	Format          string          `json:"format" db:"format"`
	DurationSeconds *float64        `json:"durationSeconds,omitempty" db:"duration_seconds"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	GeneratingJobID uuid.UUID       `json:"generatingJobId" db:"generating_job_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}
