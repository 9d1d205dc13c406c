package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// MockJobRepository is a mock type for the JobRepository type
type MockJobRepository struct {
	mock.Mock
}

// CreateJob provides a mock function with given fields: ctx, storyID, jobType, payload
func (_m *MockJobRepository) CreateJob(ctx context.Context, storyID uuid.UUID, jobType models.JobType, payload map[string]any) (uuid.UUID, error) {
	ret := _m.Called(ctx, storyID, jobType, payload)

	var r0 uuid.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(uuid.UUID)
	}
	return r0, ret.Error(1)
}

// ClaimJob provides a mock function with given fields: ctx, jobID
func (_m *MockJobRepository) ClaimJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	ret := _m.Called(ctx, jobID)

	var r0 *models.GenerationJob
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GenerationJob)
	}
	return r0, ret.Error(1)
}

// GetJob provides a mock function with given fields: ctx, jobID
func (_m *MockJobRepository) GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	ret := _m.Called(ctx, jobID)

	var r0 *models.GenerationJob
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GenerationJob)
	}
	return r0, ret.Error(1)
}

// CompleteJob provides a mock function with given fields: ctx, jobID, resultURI
func (_m *MockJobRepository) CompleteJob(ctx context.Context, jobID uuid.UUID, resultURI string) error {
	ret := _m.Called(ctx, jobID, resultURI)
	return ret.Error(0)
}

// FailJob provides a mock function with given fields: ctx, jobID, reason
func (_m *MockJobRepository) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	ret := _m.Called(ctx, jobID, reason)
	return ret.Error(0)
}

// IncrementRetry provides a mock function with given fields: ctx, jobID
func (_m *MockJobRepository) IncrementRetry(ctx context.Context, jobID uuid.UUID) (int, error) {
	ret := _m.Called(ctx, jobID)

	var r0 int
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(int)
	}
	return r0, ret.Error(1)
}

// FindStalePending provides a mock function with given fields: ctx, age, limit
func (_m *MockJobRepository) FindStalePending(ctx context.Context, age time.Duration, limit int) ([]*models.GenerationJob, error) {
	ret := _m.Called(ctx, age, limit)

	var r0 []*models.GenerationJob
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.GenerationJob)
	}
	return r0, ret.Error(1)
}

var _ interfaces.JobRepository = (*MockJobRepository)(nil)

// MockStoryRepository is a mock type for the StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

// PersistStoryBundle provides a mock function with given fields: ctx, story, pages, vocab, seeds
func (_m *MockStoryRepository) PersistStoryBundle(ctx context.Context, story *models.Story, pages []*models.StoryPage, vocab []*models.VocabEntry, seeds []interfaces.MediaJobSeed) ([]uuid.UUID, error) {
	ret := _m.Called(ctx, story, pages, vocab, seeds)

	var r0 []uuid.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]uuid.UUID)
	}
	return r0, ret.Error(1)
}

// CreateDraftStory provides a mock function with given fields: ctx, id, theme, ageRange
func (_m *MockStoryRepository) CreateDraftStory(ctx context.Context, id uuid.UUID, theme string, ageRange string) error {
	ret := _m.Called(ctx, id, theme, ageRange)
	return ret.Error(0)
}

// GetStory provides a mock function with given fields: ctx, id
func (_m *MockStoryRepository) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}
	return r0, ret.Error(1)
}

var _ interfaces.StoryRepository = (*MockStoryRepository)(nil)

// MockAssetRepository is a mock type for the AssetRepository type
type MockAssetRepository struct {
	mock.Mock
}

// InsertAssetIfAbsent provides a mock function with given fields: ctx, asset
func (_m *MockAssetRepository) InsertAssetIfAbsent(ctx context.Context, asset *models.MediaAsset) (*models.MediaAsset, error) {
	ret := _m.Called(ctx, asset)

	var r0 *models.MediaAsset
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.MediaAsset)
	}
	return r0, ret.Error(1)
}

var _ interfaces.AssetRepository = (*MockAssetRepository)(nil)

// MockFailedJobRepository is a mock type for the FailedJobRepository type
type MockFailedJobRepository struct {
	mock.Mock
}

// Insert provides a mock function with given fields: ctx, row
func (_m *MockFailedJobRepository) Insert(ctx context.Context, row *models.FailedJob) error {
	ret := _m.Called(ctx, row)
	return ret.Error(0)
}

// ListUnresolved provides a mock function with given fields: ctx, limit
func (_m *MockFailedJobRepository) ListUnresolved(ctx context.Context, limit int) ([]*models.FailedJob, error) {
	ret := _m.Called(ctx, limit)

	var r0 []*models.FailedJob
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.FailedJob)
	}
	return r0, ret.Error(1)
}

var _ interfaces.FailedJobRepository = (*MockFailedJobRepository)(nil)
