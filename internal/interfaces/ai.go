package interfaces

import (
	"context"

	"fable-server/internal/models"
)

//go:generate mockery --name AIClient --output ../mocks --outpkg mocks --case=underscore

// AIClient — типизированная обертка над chat-completions API провайдера.
type AIClient interface {
	CreateChatCompletion(ctx context.Context, params models.ChatCompletionParams) (*models.ChatCompletionResult, error)
}
