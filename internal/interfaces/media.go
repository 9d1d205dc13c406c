package interfaces

import "context"

// MediaResult — результат работы медиа-генератора.
type MediaResult struct {
	URI      string
	Format   string
	Metadata map[string]any
}

//go:generate mockery --name ImageGenerator --output ../mocks --outpkg mocks --case=underscore
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, size string) (*MediaResult, error)
}

//go:generate mockery --name SpeechGenerator --output ../mocks --outpkg mocks --case=underscore
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text, voice, format string) (*MediaResult, error)
}

// VideoComposeInput — входные данные видеокомпозиции.
type VideoComposeInput struct {
	ImageURIs        []string
	AudioURI         string
	PerPageDurations []float64
	Format           string
	FPS              int
}

//go:generate mockery --name VideoComposer --output ../mocks --outpkg mocks --case=underscore
type VideoComposer interface {
	// Compose возвращает путь к локальному файлу; загрузкой в блоб
	// занимается Uploader.
	Compose(ctx context.Context, input VideoComposeInput) (string, error)
}

//go:generate mockery --name Uploader --output ../mocks --outpkg mocks --case=underscore

// Uploader кладет локальный файл в хранилище артефактов и возвращает
// итоговый URI.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName, contentType string) (string, error)
}
