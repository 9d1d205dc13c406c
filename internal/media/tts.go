package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
)

const defaultVoice = "nova"

// Compile-time check
var _ interfaces.SpeechGenerator = (*SpeechClient)(nil)

// SpeechClient озвучивает текст страниц через speech API провайдера.
// Как и генератор изображений, без ключа отдает placeholder.
type SpeechClient struct {
	client   *openaigo.Client
	voice    string
	workDir  string
	logger   *zap.Logger
}

// NewSpeechClient создает TTS клиент. Пустой apiKey включает
// placeholder-режим. workDir — каталог для временных аудиофайлов.
func NewSpeechClient(apiKey, voice, workDir string, logger *zap.Logger) *SpeechClient {
	if voice == "" {
		voice = defaultVoice
	}
	c := &SpeechClient{
		voice:   voice,
		workDir: workDir,
		logger:  logger.Named("SpeechClient"),
	}
	if apiKey != "" {
		c.client = openaigo.NewClient(apiKey)
	}
	return c
}

// GenerateSpeech синтезирует речь и возвращает путь к локальному
// файлу; в хранилище артефактов его поднимает Uploader.
func (c *SpeechClient) GenerateSpeech(ctx context.Context, text, voice, format string) (*interfaces.MediaResult, error) {
	if voice == "" {
		voice = c.voice
	}
	if format == "" {
		format = "mp3"
	}

	if c.client == nil {
		uri := placeholderURI("audio", text)
		c.logger.Info("tts provider not configured, returning placeholder", zap.String("uri", uri))
		return &interfaces.MediaResult{
			URI:    uri,
			Format: format,
			Metadata: map[string]any{
				"placeholder": true,
				"voice":       voice,
			},
		}, nil
	}

	resp, err := c.client.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model:          openaigo.TTSModel1,
		Input:          text,
		Voice:          openaigo.SpeechVoice(voice),
		ResponseFormat: openaigo.SpeechResponseFormat(format),
	})
	if err != nil {
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}
	defer resp.Close()

	if err := os.MkdirAll(c.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tts work dir: %w", err)
	}
	outPath := filepath.Join(c.workDir, fmt.Sprintf("tts-%s.%s", uuid.NewString(), format))

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	return &interfaces.MediaResult{
		URI:    outPath,
		Format: format,
		Metadata: map[string]any{
			"voice": voice,
		},
	}, nil
}
