package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
)

// Compile-time check
var _ interfaces.ImageGenerator = (*ImageClient)(nil)

// ImageClient генерирует иллюстрации через images API провайдера.
// Без ключа работает детерминированный placeholder: флот воркеров
// должен подниматься и без медиа-кредов.
type ImageClient struct {
	client      *openaigo.Client
	defaultSize string
	logger      *zap.Logger
}

// NewImageClient создает клиент генерации изображений. Пустой apiKey
// включает placeholder-режим.
func NewImageClient(apiKey, defaultSize string, logger *zap.Logger) *ImageClient {
	c := &ImageClient{
		defaultSize: defaultSize,
		logger:      logger.Named("ImageClient"),
	}
	if apiKey != "" {
		c.client = openaigo.NewClient(apiKey)
	}
	return c
}

// GenerateImage возвращает URL сгенерированного изображения.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt, size string) (*interfaces.MediaResult, error) {
	if size == "" {
		size = c.defaultSize
	}

	if c.client == nil {
		uri := placeholderURI("image", prompt)
		c.logger.Info("image provider not configured, returning placeholder", zap.String("uri", uri))
		return &interfaces.MediaResult{
			URI:    uri,
			Format: "png",
			Metadata: map[string]any{
				"placeholder": true,
				"size":        size,
			},
		}, nil
	}

	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Size:           size,
		N:              1,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image generation returned no data")
	}

	return &interfaces.MediaResult{
		URI:    resp.Data[0].URL,
		Format: "png",
		Metadata: map[string]any{
			"size": size,
		},
	}, nil
}

// placeholderURI детерминированно выводится из промпта, чтобы
// повторный запуск того же задания давал тот же артефакт.
func placeholderURI(kind, seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("placeholder://%s/%s", kind, hex.EncodeToString(sum[:8]))
}
