package queue

import (
	"context"

	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Compile-time check
var _ interfaces.Queue = (*NoopQueue)(nil)

// NoopQueue позволяет процессу стартовать без настроенной очереди:
// Push возвращает ошибку, Pop молча сообщает о пустой очереди.
type NoopQueue struct {
	logger *zap.Logger
}

// NewNoopQueue создает заглушку очереди.
func NewNoopQueue(logger *zap.Logger) *NoopQueue {
	return &NoopQueue{logger: logger.Named("NoopQueue")}
}

func (q *NoopQueue) Push(ctx context.Context, message string) error {
	return models.ErrQueueNotConfigured
}

func (q *NoopQueue) PushBatch(ctx context.Context, messages []string) error {
	return models.ErrQueueNotConfigured
}

func (q *NoopQueue) Pop(ctx context.Context) (string, error) {
	return "", nil
}

func (q *NoopQueue) Close() error {
	return nil
}
