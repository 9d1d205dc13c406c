package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fable-server/internal/config"
	"fable-server/internal/interfaces"
)

// Envelope — минимальный конверт сообщения очереди. Вся правда о
// задании живет в хранилище, очередь несет только ссылку.
type Envelope struct {
	JobID     string `json:"jobId"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// NewEnvelope создает конверт для задания с текущей меткой времени.
func NewEnvelope(jobID string) Envelope {
	return Envelope{
		JobID:     jobID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Encode сериализует конверт в однострочный JSON.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue envelope: %w", err)
	}
	return string(data), nil
}

// DecodeEnvelope разбирает сообщение очереди.
func DecodeEnvelope(message string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(message), &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode queue envelope: %w", err)
	}
	return e, nil
}

// New выбирает реализацию очереди по конфигурации. Выбор статичен на
// все время жизни процесса: redis URL важнее REST, REST важнее no-op.
func New(cfg *config.Config, logger *zap.Logger) (interfaces.Queue, error) {
	switch {
	case cfg.UpstashRedisURL != "":
		return NewRedisQueue(cfg.UpstashRedisURL, cfg.QueueName, cfg.WorkerPollInterval, logger)
	case cfg.UpstashRestURL != "" && cfg.UpstashRestToken != "":
		return NewRestQueue(cfg.UpstashRestURL, cfg.UpstashRestToken, cfg.QueueName, logger), nil
	default:
		logger.Warn("no queue configured, using no-op queue")
		return NewNoopQueue(logger), nil
	}
}
