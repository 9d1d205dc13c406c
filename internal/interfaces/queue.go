package interfaces

import "context"

//go:generate mockery --name Queue --output ../mocks --outpkg mocks --case=underscore

// Queue — FIFO очередь ссылок на задания. Push кладет одно сообщение
// в хвост, PushBatch — все сообщения одним обращением к брокеру. Pop
// блокируется не дольше своего таймаута и возвращает пустую строку,
// когда очередь пуста.
type Queue interface {
	Push(ctx context.Context, message string) error
	PushBatch(ctx context.Context, messages []string) error
	Pop(ctx context.Context) (string, error)
	Close() error
}
