package interfaces

import "context"

// FailureContext описывает место возникновения невосстановимой ошибки.
type FailureContext struct {
	JobID    string
	StoryRef string
	Stage    string
	Attempt  int
	Extra    map[string]any
}

//go:generate mockery --name FailureRecorder --output ../mocks --outpkg mocks --case=underscore

// FailureRecorder пишет аудитные записи об ошибках и решает политику
// повторов.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, fctx FailureContext, cause error) error
	ShouldRetry(err error, attempt int) bool
}
