package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
)

// Стадии координации, не привязанные к конкретному заданию.
const (
	StagePersistence = "persistence"
	StageUpstashPush = "upstash_push"
)

// defaultRetryCeiling — потолок попыток политики ShouldRetry.
const defaultRetryCeiling = 3

// Compile-time check
var _ interfaces.FailureRecorder = (*Recorder)(nil)

// Recorder пишет аудитные записи о невосстановимых ошибках и по
// желанию уведомляет внешний webhook.
type Recorder struct {
	repo       interfaces.FailedJobRepository
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRecorder создает рекордер ошибок. Пустой webhookURL отключает
// уведомления.
func NewRecorder(repo interfaces.FailedJobRepository, webhookURL string, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:       repo,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger.Named("FailureRecorder"),
	}
}

// RecordFailure нормализует ошибку и пишет одну строку в failed_jobs.
// Webhook срабатывает в фоне; его ошибки логируются и не пробрасываются.
func (r *Recorder) RecordFailure(ctx context.Context, fctx interfaces.FailureContext, cause error) error {
	message := normalizeError(cause)
	if fctx.Stage != "" {
		message = fmt.Sprintf("stage=%s attempt=%d: %s", fctx.Stage, fctx.Attempt, message)
	}

	row := &models.FailedJob{
		ErrorCode:    errorCode(fctx),
		ErrorMessage: message,
	}
	if fctx.JobID != "" {
		if jobID, err := uuid.Parse(fctx.JobID); err == nil {
			row.JobID = &jobID
		}
	}

	if err := r.repo.Insert(ctx, row); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	if r.webhookURL != "" {
		go r.notify(fctx, message)
	}
	return nil
}

// ShouldRetry реализует политику повторов: попытка ниже потолка и
// статус 5xx либо 429. Ошибки с "Abort" в имени не повторяются никогда.
func (r *Recorder) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "Abort") {
		return false
	}
	if attempt >= defaultRetryCeiling {
		return false
	}
	status := httpStatus(err)
	return status >= 500 || status == http.StatusTooManyRequests
}

func (r *Recorder) notify(fctx interfaces.FailureContext, message string) {
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("generation failure [%s] story=%s job=%s: %s",
			fctx.Stage, fctx.StoryRef, fctx.JobID, message),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(payload))
	if err != nil {
		r.logger.Warn("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("webhook notification failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("webhook notification rejected", zap.Int("status", resp.StatusCode))
	}
}

// normalizeError возвращает сообщение ошибки, а для нестандартных
// значений его JSON-представление.
func normalizeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		return fmt.Sprintf("%v", err)
	}
	return string(data)
}

func errorCode(fctx interfaces.FailureContext) string {
	if fctx.Stage != "" {
		return fctx.Stage
	}
	return "unknown"
}

// httpStatus извлекает HTTP статус из ошибок провайдера; 0 когда
// статуса нет.
func httpStatus(err error) int {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
