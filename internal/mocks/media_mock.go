package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/interfaces"
)

// MockImageGenerator is a mock type for the ImageGenerator type
type MockImageGenerator struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, prompt, size
func (_m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string, size string) (*interfaces.MediaResult, error) {
	ret := _m.Called(ctx, prompt, size)

	var r0 *interfaces.MediaResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*interfaces.MediaResult)
	}
	return r0, ret.Error(1)
}

var _ interfaces.ImageGenerator = (*MockImageGenerator)(nil)

// MockSpeechGenerator is a mock type for the SpeechGenerator type
type MockSpeechGenerator struct {
	mock.Mock
}

// GenerateSpeech provides a mock function with given fields: ctx, text, voice, format
func (_m *MockSpeechGenerator) GenerateSpeech(ctx context.Context, text string, voice string, format string) (*interfaces.MediaResult, error) {
	ret := _m.Called(ctx, text, voice, format)

	var r0 *interfaces.MediaResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*interfaces.MediaResult)
	}
	return r0, ret.Error(1)
}

var _ interfaces.SpeechGenerator = (*MockSpeechGenerator)(nil)

// MockVideoComposer is a mock type for the VideoComposer type
type MockVideoComposer struct {
	mock.Mock
}

// Compose provides a mock function with given fields: ctx, input
func (_m *MockVideoComposer) Compose(ctx context.Context, input interfaces.VideoComposeInput) (string, error) {
	ret := _m.Called(ctx, input)

	var r0 string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}
	return r0, ret.Error(1)
}

var _ interfaces.VideoComposer = (*MockVideoComposer)(nil)

// MockUploader is a mock type for the Uploader type
type MockUploader struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, localPath, objectName, contentType
func (_m *MockUploader) Upload(ctx context.Context, localPath string, objectName string, contentType string) (string, error) {
	ret := _m.Called(ctx, localPath, objectName, contentType)

	var r0 string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}
	return r0, ret.Error(1)
}

var _ interfaces.Uploader = (*MockUploader)(nil)
