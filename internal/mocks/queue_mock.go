package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/interfaces"
)

// MockQueue is a mock type for the Queue type
type MockQueue struct {
	mock.Mock
}

// Push provides a mock function with given fields: ctx, message
func (_m *MockQueue) Push(ctx context.Context, message string) error {
	ret := _m.Called(ctx, message)
	return ret.Error(0)
}

// PushBatch provides a mock function with given fields: ctx, messages
func (_m *MockQueue) PushBatch(ctx context.Context, messages []string) error {
	ret := _m.Called(ctx, messages)
	return ret.Error(0)
}

// Pop provides a mock function with given fields: ctx
func (_m *MockQueue) Pop(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context) string); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	return r0, ret.Error(1)
}

// Close provides a mock function with no fields
func (_m *MockQueue) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

var _ interfaces.Queue = (*MockQueue)(nil)
