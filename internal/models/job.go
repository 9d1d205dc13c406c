package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus определяет статус задания генерации.
// Совпадает с типом ENUM 'job_status' в БД.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobType определяет тип задания. Совпадает с ENUM 'job_type' в БД.
type JobType string

const (
	JobTypeStoryScript JobType = "story_script"
	JobTypeTranslation JobType = "translation"
	JobTypeVocabulary  JobType = "vocabulary"
	JobTypeImage       JobType = "image"
	JobTypeAudio       JobType = "audio"
	JobTypeVideo       JobType = "video"
)

// GenerationJob — единица работы пайплайна. Допустимые переходы:
// pending -> processing -> (completed | failed). Переход в processing
// выполняется только атомарным ClaimJob.
type GenerationJob struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	StoryID       uuid.UUID       `json:"storyId" db:"story_id"`
	JobType       JobType         `json:"jobType" db:"job_type"`
	Status        JobStatus       `json:"status" db:"status"`
	RetryCount    int             `json:"retryCount" db:"retry_count"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	ResultURI     *string         `json:"resultUri,omitempty" db:"result_uri"`
	FailureReason *string         `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsValidType сообщает, известен ли тип задания воркеру.
func (j *GenerationJob) IsValidType() bool {
	switch j.JobType {
	case JobTypeStoryScript, JobTypeTranslation, JobTypeVocabulary,
		JobTypeImage, JobTypeAudio, JobTypeVideo:
		return true
	}
	return false
}

// HasValidShape проверяет минимальную форму заявленной строки задания
// перед маршрутизацией: id, тип и payload должны присутствовать.
func (j *GenerationJob) HasValidShape() bool {
	return j.ID != uuid.Nil && j.JobType != "" && len(j.Payload) > 0
}

// FailedJob — аудитная запись о невосстановимой ошибке. JobID может
// быть NULL для ошибок уровня координации (persistence, upstash_push).
type FailedJob struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	JobID        *uuid.UUID `json:"jobId,omitempty" db:"job_id"`
	ErrorCode    string     `json:"errorCode" db:"error_code"`
	ErrorMessage string     `json:"errorMessage" db:"error_message"`
	Resolved     bool       `json:"resolved" db:"resolved"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}
