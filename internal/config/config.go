package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"fable-server/internal/logger"
)

// Config содержит конфигурацию ядра пайплайна генерации.
// Все значения читаются из переменных окружения при старте процесса.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	Logger logger.Config

	// Настройки AI провайдера (OpenAI-совместимый API)
	AIAPIKey         string        `envconfig:"OPENAI_API_KEY"`
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`

	// Настройки PostgreSQL
	DatabaseURL string `envconfig:"DATABASE_URL"`
	PostgresURL string `envconfig:"POSTGRES_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// Настройки очереди (Upstash-совместимый list broker)
	UpstashRedisURL  string `envconfig:"UPSTASH_REDIS_URL"`
	UpstashRestURL   string `envconfig:"UPSTASH_REST_URL"`
	UpstashRestToken string `envconfig:"UPSTASH_REST_TOKEN"`
	QueueName        string `envconfig:"UPSTASH_QUEUE_NAME" default:"generation_jobs"`

	// Настройки воркера
	WorkerConcurrency   int           `envconfig:"WORKER_CONCURRENCY" default:"3"`
	WorkerPollInterval  time.Duration `envconfig:"WORKER_POLL_INTERVAL_MS" default:"5000ms"`
	WorkerMaxRetries    int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	WorkerBackoffBase   time.Duration `envconfig:"WORKER_BACKOFF_BASE_MS" default:"1000ms"`
	WorkerShutdownGrace time.Duration `envconfig:"WORKER_SHUTDOWN_GRACE" default:"30s"`
	WorkerMetricsAddr   string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	// Реконсилятор: повторная публикация зависших pending задач
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"60s"`
	ReconcileStaleAge time.Duration `envconfig:"RECONCILE_STALE_AGE" default:"300s"`

	// Медиа провайдеры (опциональны, без них работает placeholder)
	ImageAPIKey string `envconfig:"IMAGE_API_KEY"`
	ImageSize   string `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	TTSAPIKey   string `envconfig:"TTS_API_KEY"`
	TTSVoice    string `envconfig:"TTS_VOICE" default:"nova"`

	// Видео композиция
	FFmpegPath string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	VideoFPS   int    `envconfig:"VIDEO_FPS" default:"24"`

	// Хранилище артефактов
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"fable-media"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Уведомления об ошибках
	SlackWebhook string `envconfig:"SLACK_WEBHOOK"`

	// HTTP API
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Служебные флаги
	SkipPersistence   bool `envconfig:"SKIP_PERSISTENCE" default:"false"`
	SkipEnvValidation bool `envconfig:"SKIP_ENV_VALIDATION" default:"false"`
}

// Load загружает конфигурацию из переменных окружения и валидирует
// обязательные ключи. Валидация отключается флагом SKIP_ENV_VALIDATION
// (только для тестов).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if !cfg.SkipEnvValidation {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.GetDSN() == "" {
		return errors.New("DATABASE_URL (or POSTGRES_URL) is required")
	}
	return nil
}

// GetDSN возвращает строку подключения к PostgreSQL.
// DATABASE_URL имеет приоритет над POSTGRES_URL.
func (c *Config) GetDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.PostgresURL
}

// MaskedDSN возвращает DSN с замаскированным паролем для логирования.
func (c *Config) MaskedDSN() string {
	dsn := c.GetDSN()
	if dsn == "" {
		return ""
	}
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 3 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
