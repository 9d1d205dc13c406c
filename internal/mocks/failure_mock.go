package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// MockFailureRecorder is a mock type for the FailureRecorder type
type MockFailureRecorder struct {
	mock.Mock
}

// RecordFailure provides a mock function with given fields: ctx, fctx, cause
func (_m *MockFailureRecorder) RecordFailure(ctx context.Context, fctx interfaces.FailureContext, cause error) error {
	ret := _m.Called(ctx, fctx, cause)
	return ret.Error(0)
}

// ShouldRetry provides a mock function with given fields: err, attempt
func (_m *MockFailureRecorder) ShouldRetry(err error, attempt int) bool {
	ret := _m.Called(err, attempt)

	var r0 bool
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(bool)
	}
	return r0
}

var _ interfaces.FailureRecorder = (*MockFailureRecorder)(nil)

// MockPersister is a mock type for the Persister type
type MockPersister struct {
	mock.Mock
}

// Persist provides a mock function with given fields: ctx, storyRef, theme, story, translation, vocab
func (_m *MockPersister) Persist(ctx context.Context, storyRef string, theme string, story *models.StoryDraft, translation *models.TranslationResult, vocab *models.VocabularyResult) ([]string, error) {
	ret := _m.Called(ctx, storyRef, theme, story, translation, vocab)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

var _ interfaces.Persister = (*MockPersister)(nil)
