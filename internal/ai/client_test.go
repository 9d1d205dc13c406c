package ai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/config"
	"fable-server/internal/models"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "{\"title_en\":\"The Cloud\"}"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

const providerErrorBody = `{"error":{"message":"upstream exploded","type":"server_error"}}`

// newTestClient направляет клиент в локальный httptest-сервер с
// миллисекундной базой повторов, чтобы тесты не спали по секунде.
func newTestClient(t *testing.T, srv *httptest.Server) *ai.Client {
	t.Helper()
	return ai.NewClient(&config.Config{
		AIAPIKey:         "test-key",
		AIBaseURL:        srv.URL + "/v1",
		AIModel:          "gpt-4o-mini",
		AITimeout:        5 * time.Second,
		AIMaxAttempts:    3,
		AIBaseRetryDelay: 10 * time.Millisecond,
	}, zap.NewNop())
}

func storyParams() models.ChatCompletionParams {
	return models.ChatCompletionParams{
		Messages: []models.ChatMessage{
			{Role: "system", Content: "You write stories."},
			{Role: "user", Content: "Theme: clouds."},
		},
		Temperature: 0.8,
	}
}

func TestCreateChatCompletionRetries(t *testing.T) {
	t.Run("500 twice then success completes on third call", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(providerErrorBody))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(completionBody))
		}))
		defer srv.Close()

		result, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, `{"title_en":"The Cloud"}`, result.Raw)
		assert.Equal(t, 17, result.Usage.TotalTokens)

		decoded, ok := result.Data.(map[string]any)
		require.True(t, ok, "choice text must decode as JSON")
		assert.Equal(t, "The Cloud", decoded["title_en"])
	})

	t.Run("429 then success retries once", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(completionBody))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("persistent 500 exhausts attempts with backoff", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(providerErrorBody))
		}))
		defer srv.Close()

		start := time.Now()
		_, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat completion failed")
		assert.Equal(t, int32(3), calls.Load())
		// база 10ms, множитель 2: минимум 10ms + 20ms между попытками
		assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	})

	t.Run("400 fails without retry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad prompt","type":"invalid_request_error"}}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty choices rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"chatcmpl-2","object":"chat.completion","choices":[]}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no choices")
	})

	t.Run("non-json choice text keeps raw only", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "chatcmpl-3",
				"object": "chat.completion",
				"choices": [{
					"index": 0,
					"message": {"role": "assistant", "content": "plain prose, not json"},
					"finish_reason": "stop"
				}],
				"usage": {"prompt_tokens": 4, "completion_tokens": 4, "total_tokens": 8}
			}`))
		}))
		defer srv.Close()

		result, err := newTestClient(t, srv).CreateChatCompletion(context.Background(), storyParams())
		require.NoError(t, err)
		assert.Equal(t, "plain prose, not json", result.Raw)
		assert.Nil(t, result.Data)
	})
}
