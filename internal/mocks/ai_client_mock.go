package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// CreateChatCompletion provides a mock function with given fields: ctx, params
func (_m *MockAIClient) CreateChatCompletion(ctx context.Context, params models.ChatCompletionParams) (*models.ChatCompletionResult, error) {
	ret := _m.Called(ctx, params)

	var r0 *models.ChatCompletionResult
	if rf, ok := ret.Get(0).(func(context.Context, models.ChatCompletionParams) *models.ChatCompletionResult); ok {
		r0 = rf(ctx, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*models.ChatCompletionResult)
		}
	}

	return r0, ret.Error(1)
}

var _ interfaces.AIClient = (*MockAIClient)(nil)
