package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
	"fable-server/internal/orchestrator"
	"fable-server/internal/prompts"
)

// TextPipeline запускает три текстовые стадии. Сужение интерфейса
// оркестратора до того, что нужно воркеру.
type TextPipeline interface {
	Generate(ctx context.Context, storyRef string, req prompts.StoryRequest, attempt int) (*orchestrator.Result, error)
}

// Handlers маршрутизирует заявленное задание к обработчику его типа.
// Каждый обработчик возвращает result URI для CompleteJob.
type Handlers struct {
	pipeline  TextPipeline
	persister interfaces.Persister
	images    interfaces.ImageGenerator
	speech    interfaces.SpeechGenerator
	composer  interfaces.VideoComposer
	uploader  interfaces.Uploader
	assets    interfaces.AssetRepository
	logger    *zap.Logger
}

// NewHandlers создает маршрутизатор обработчиков заданий.
func NewHandlers(
	pipeline TextPipeline,
	persister interfaces.Persister,
	images interfaces.ImageGenerator,
	speech interfaces.SpeechGenerator,
	composer interfaces.VideoComposer,
	uploader interfaces.Uploader,
	assets interfaces.AssetRepository,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		pipeline:  pipeline,
		persister: persister,
		images:    images,
		speech:    speech,
		composer:  composer,
		uploader:  uploader,
		assets:    assets,
		logger:    logger.Named("JobHandlers"),
	}
}

// Handle выполняет задание и возвращает result URI.
func (h *Handlers) Handle(ctx context.Context, job *models.GenerationJob) (string, error) {
	switch job.JobType {
	case models.JobTypeStoryScript:
		return h.handleStoryScript(ctx, job)
	case models.JobTypeImage:
		return h.handleImage(ctx, job)
	case models.JobTypeAudio:
		return h.handleAudio(ctx, job)
	case models.JobTypeVideo:
		return h.handleVideo(ctx, job)
	default:
		return "", fmt.Errorf("unknown job type %q", job.JobType)
	}
}

type storyScriptPayload struct {
	StoryID  string `json:"storyId"`
	Theme    string `json:"theme"`
	Tone     string `json:"tone"`
	AgeRange string `json:"ageRange"`
}

func (h *Handlers) handleStoryScript(ctx context.Context, job *models.GenerationJob) (string, error) {
	var payload storyScriptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid story_script payload: %w", err)
	}
	if payload.Theme == "" {
		return "", fmt.Errorf("story_script payload has no theme")
	}
	storyRef := payload.StoryID
	if storyRef == "" {
		storyRef = job.StoryID.String()
	}

	result, err := h.pipeline.Generate(ctx, storyRef, prompts.StoryRequest{
		Theme:    payload.Theme,
		Tone:     payload.Tone,
		AgeRange: payload.AgeRange,
	}, job.RetryCount+1)
	if err != nil {
		return "", err
	}

	jobIDs, err := h.persister.Persist(ctx, storyRef, payload.Theme, result.Story, result.Translation, result.Vocabulary)
	if err != nil {
		return "", err
	}

	h.logger.Info("story pipeline persisted",
		zap.String("storyRef", storyRef),
		zap.Int("mediaJobs", len(jobIDs)),
	)
	return "story://" + storyRef, nil
}

type pagePayload struct {
	PageNumber int    `json:"pageNumber"`
	TextEn     string `json:"textEn"`
	TextZh     string `json:"textZh"`
	Prompt     string `json:"prompt"`
	Size       string `json:"size"`
	Voice      string `json:"voice"`
	Format     string `json:"format"`
}

func (h *Handlers) handleImage(ctx context.Context, job *models.GenerationJob) (string, error) {
	var payload pagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid image payload: %w", err)
	}

	prompt := payload.Prompt
	if prompt == "" {
		prompt = illustrationPrompt(payload.TextEn)
	}

	result, err := h.images.GenerateImage(ctx, prompt, payload.Size)
	if err != nil {
		return "", err
	}

	return h.storeAsset(ctx, job, models.MediaTypeImage, result, payload.PageNumber)
}

func (h *Handlers) handleAudio(ctx context.Context, job *models.GenerationJob) (string, error) {
	var payload pagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid audio payload: %w", err)
	}
	if payload.TextEn == "" {
		return "", fmt.Errorf("audio payload has no text")
	}

	result, err := h.speech.GenerateSpeech(ctx, payload.TextEn, payload.Voice, payload.Format)
	if err != nil {
		return "", err
	}

	// TTS отдает локальный файл, поднимаем его в хранилище.
	if isLocalPath(result.URI) {
		objectName := fmt.Sprintf("stories/%s/audio/page-%d.%s", job.StoryID, payload.PageNumber, result.Format)
		uploaded, err := h.uploader.Upload(ctx, result.URI, objectName, contentTypeFor(result.Format))
		if err != nil {
			return "", fmt.Errorf("audio upload failed: %w", err)
		}
		result.URI = uploaded
	}

	return h.storeAsset(ctx, job, models.MediaTypeAudio, result, payload.PageNumber)
}

type videoPayload struct {
	ImageURIs        []string  `json:"imageUris"`
	AudioURI         string    `json:"audioUri"`
	PerPageDurations []float64 `json:"perPageDurations"`
	Format           string    `json:"format"`
	FPS              int       `json:"fps"`
}

func (h *Handlers) handleVideo(ctx context.Context, job *models.GenerationJob) (string, error) {
	var payload videoPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid video payload: %w", err)
	}
	if len(payload.ImageURIs) == 0 {
		return "", fmt.Errorf("video payload has no images")
	}

	localPath, err := h.composer.Compose(ctx, interfaces.VideoComposeInput{
		ImageURIs:        payload.ImageURIs,
		AudioURI:         payload.AudioURI,
		PerPageDurations: payload.PerPageDurations,
		Format:           payload.Format,
		FPS:              payload.FPS,
	})
	if err != nil {
		return "", err
	}
	defer os.Remove(localPath)

	format := payload.Format
	if format == "" {
		format = "mp4"
	}
	objectName := fmt.Sprintf("stories/%s/video/story.%s", job.StoryID, format)
	uploaded, err := h.uploader.Upload(ctx, localPath, objectName, contentTypeFor(format))
	if err != nil {
		return "", fmt.Errorf("video upload failed: %w", err)
	}

	return h.storeAsset(ctx, job, models.MediaTypeVideo, &interfaces.MediaResult{
		URI:    uploaded,
		Format: format,
	}, 0)
}

// storeAsset идемпотентно записывает артефакт и возвращает URI
// фактически сохраненной строки.
func (h *Handlers) storeAsset(ctx context.Context, job *models.GenerationJob, mediaType models.MediaType, result *interfaces.MediaResult, pageNumber int) (string, error) {
	metadata := result.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if pageNumber > 0 {
		metadata["pageNumber"] = pageNumber
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal asset metadata: %w", err)
	}

	asset, err := h.assets.InsertAssetIfAbsent(ctx, &models.MediaAsset{
		StoryID:         job.StoryID,
		MediaType:       mediaType,
		URI:             result.URI,
		Format:          result.Format,
		Metadata:        metadataJSON,
		GeneratingJobID: job.ID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store %s asset: %w", mediaType, err)
	}
	return asset.URI, nil
}

func illustrationPrompt(pageText string) string {
	var b strings.Builder
	b.WriteString("Children's picture book illustration, soft colors, warm and friendly, no text in image. Scene: ")
	b.WriteString(pageText)
	return b.String()
}

// isLocalPath отличает файл на диске от удаленных и placeholder URI.
func isLocalPath(uri string) bool {
	return !strings.Contains(uri, "://")
}

func contentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "aac":
		return "audio/aac"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
