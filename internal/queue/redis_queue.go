package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
)

// Compile-time check
var _ interfaces.Queue = (*RedisQueue)(nil)

// RedisQueue — прямой list-broker вариант очереди: RPUSH на запись,
// блокирующий BRPOP с ограниченным таймаутом на чтение.
type RedisQueue struct {
	client     *redis.Client
	queueName  string
	popTimeout time.Duration
	logger     *zap.Logger
}

// NewRedisQueue подключается к Redis по URL и проверяет соединение пингом.
func NewRedisQueue(redisURL, queueName string, popTimeout time.Duration, logger *zap.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}

	logger.Info("redis queue connected", zap.String("queue", queueName))

	return &RedisQueue{
		client:     client,
		queueName:  queueName,
		popTimeout: popTimeout,
		logger:     logger.Named("RedisQueue"),
	}, nil
}

// Push кладет сообщение в хвост списка.
func (q *RedisQueue) Push(ctx context.Context, message string) error {
	if err := q.client.RPush(ctx, q.queueName, message).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.queueName, err)
	}
	return nil
}

// PushBatch кладет все сообщения одним RPUSH.
func (q *RedisQueue) PushBatch(ctx context.Context, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]any, len(messages))
	for i, m := range messages {
		values[i] = m
	}
	if err := q.client.RPush(ctx, q.queueName, values...).Err(); err != nil {
		return fmt.Errorf("failed to batch push to queue %s: %w", q.queueName, err)
	}
	return nil
}

// Pop блокируется не дольше popTimeout и возвращает пустую строку,
// когда очередь пуста.
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	result, err := q.client.BRPop(ctx, q.popTimeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to pop from queue %s: %w", q.queueName, err)
	}
	// BRPOP возвращает пару [key, value]
	if len(result) < 2 {
		return "", nil
	}
	return result[1], nil
}

// Close закрывает соединение с Redis.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
