package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/config"
	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Compile-time check
var _ interfaces.AIClient = (*Client)(nil)

// Client — обертка над OpenAI-совместимым chat-completions API с
// повторами на временных ошибках провайдера.
type Client struct {
	client      *openaigo.Client
	model       string
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewClient создает AI клиент из конфигурации. Base URL позволяет
// направлять запросы в совместимые локальные бэкенды.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	clientConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	if cfg.AIBaseURL != "" {
		clientConfig.BaseURL = cfg.AIBaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}

	maxAttempts := cfg.AIMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := cfg.AIBaseRetryDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &Client{
		client:      openaigo.NewClientWithConfig(clientConfig),
		model:       cfg.AIModel,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.Named("AIClient"),
	}
}

// CreateChatCompletion выполняет один chat-completions вызов.
// Повторяется только на HTTP статусах >=500 и 429, с экспоненциальной
// задержкой (база 1s, множитель 2). Текст первого choice декодируется
// как JSON, когда это возможно; иначе возвращается сырая строка.
func (c *Client) CreateChatCompletion(ctx context.Context, params models.ChatCompletionParams) (*models.ChatCompletionResult, error) {
	messages := make([]openaigo.ChatCompletionMessage, 0, len(params.Messages))
	for _, m := range params.Messages {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	request := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: params.Temperature,
	}
	if params.MaxTokens > 0 {
		request.MaxTokens = params.MaxTokens
	}

	start := time.Now()
	var resp openaigo.ChatCompletionResponse

	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = c.client.CreateChatCompletion(ctx, request)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxAttempts)),
		retry.Delay(c.baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetriable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("AI request retry",
				zap.Uint("attempt", attempt+1),
				zap.Error(err),
			)
		}),
	)
	duration := time.Since(start)

	if err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Error("AI request failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, errors.New("chat completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	usage := models.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = c.estimateUsage(params.Messages, raw)
	}

	result := &models.ChatCompletionResult{
		Raw:   raw,
		Usage: usage,
	}
	var decoded any
	if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &decoded); jsonErr == nil {
		result.Data = decoded
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	aiTotalTokens.WithLabelValues(c.model).Observe(float64(usage.TotalTokens))

	c.logger.Info("AI request completed",
		zap.Duration("duration", duration),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return result, nil
}

// estimateUsage оценивает расход токенов локально, когда провайдер не
// вернул usage в ответе.
func (c *Client) estimateUsage(messages []models.ChatMessage, completion string) models.Usage {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return models.Usage{}
		}
	}

	var promptTokens int
	for _, m := range messages {
		promptTokens += len(tke.Encode(m.Content, nil, nil))
	}
	completionTokens := len(tke.Encode(completion, nil, nil))

	return models.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// isRetriable сообщает, стоит ли повторять вызов: только статусы >=500
// и 429. Остальные ошибки провайдера постоянны.
func isRetriable(err error) bool {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
