package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
)

// Compile-time check
var _ interfaces.Queue = (*RestQueue)(nil)

// RestQueue — запасной путь публикации через REST endpoint с Bearer
// авторизацией. Поддерживает только Push; Pop всегда возвращает пусто.
type RestQueue struct {
	endpoint   string
	token      string
	queueName  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRestQueue создает REST-паблишер очереди.
func NewRestQueue(endpoint, token, queueName string, logger *zap.Logger) *RestQueue {
	return &RestQueue{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		queueName:  queueName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("RestQueue"),
	}
}

// Push публикует сообщение. Первая попытка идет на /rpush/{queue};
// если ответ похож на ошибку разбора команды (подстрока в теле или
// статус 400/422/0), выполняется ровно одна повторная попытка с телом
// в форме Redis-команды {"command":["RPUSH", queue, message]}.
// Ошибки авторизации (401/403) прерывают публикацию сразу.
func (q *RestQueue) Push(ctx context.Context, message string) error {
	status, body, err := q.post(ctx, fmt.Sprintf("%s/rpush/%s", q.endpoint, q.queueName), message)
	if err != nil {
		status = 0
		body = err.Error()
	}

	if status == http.StatusOK {
		return nil
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("queue rest push unauthorized (status %d): %s", status, body)
	}

	if !isCommandParseFailure(status, body) {
		return fmt.Errorf("queue rest push failed (status %d): %s", status, body)
	}

	q.logger.Warn("rest push rejected, retrying with command-style body",
		zap.Int("status", status),
	)

	payload, err := json.Marshal(map[string]any{
		"command": []string{"RPUSH", q.queueName, message},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal command body: %w", err)
	}

	status, body, err = q.post(ctx, q.endpoint, string(payload))
	if err != nil {
		return fmt.Errorf("queue rest command push failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("queue rest command push failed (status %d): %s", status, body)
	}
	return nil
}

// PushBatch публикует все сообщения одним POST на endpoint с телом
// {"queue": <name>, "messages": [...]}. Если ответ похож на ошибку
// разбора, выполняется ровно одна повторная попытка в форме
// Redis-команды {"command":["RPUSH", queue, ...messages]}. Ошибки
// авторизации (401/403) прерывают публикацию сразу.
func (q *RestQueue) PushBatch(ctx context.Context, messages []string) error {
	if len(messages) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"queue":    q.queueName,
		"messages": messages,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal batch body: %w", err)
	}

	status, body, err := q.post(ctx, q.endpoint, string(payload))
	if err != nil {
		status = 0
		body = err.Error()
	}

	if status == http.StatusOK {
		return nil
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("queue rest batch push unauthorized (status %d): %s", status, body)
	}

	if !isCommandParseFailure(status, body) {
		return fmt.Errorf("queue rest batch push failed (status %d): %s", status, body)
	}

	q.logger.Warn("rest batch push rejected, retrying with command-style body",
		zap.Int("status", status),
		zap.Int("messageCount", len(messages)),
	)

	command, err := json.Marshal(map[string]any{
		"command": append([]string{"RPUSH", q.queueName}, messages...),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal command body: %w", err)
	}

	status, body, err = q.post(ctx, q.endpoint, string(command))
	if err != nil {
		return fmt.Errorf("queue rest batch command push failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("queue rest batch command push failed (status %d): %s", status, body)
	}
	return nil
}

// Pop не поддерживается REST-путем.
func (q *RestQueue) Pop(ctx context.Context) (string, error) {
	return "", nil
}

// Close ничего не держит открытым.
func (q *RestQueue) Close() error {
	return nil
}

func (q *RestQueue) post(ctx context.Context, url, body string) (int, string, error) {
	var status int
	var respBody string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to build request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+q.token)
			req.Header.Set("Content-Type", "application/json")

			resp, err := q.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			status = resp.StatusCode
			respBody = string(data)

			if status >= 500 {
				return fmt.Errorf("server error %d", status)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil && status == 0 {
		return 0, "", err
	}
	return status, respBody, nil
}

// isCommandParseFailure распознает ответы, после которых имеет смысл
// повторить публикацию в форме Redis-команды.
func isCommandParseFailure(status int, body string) bool {
	if status == 400 || status == 422 || status == 0 {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "failed to parse") || strings.Contains(lower, "parse error")
}
