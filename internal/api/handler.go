package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/models"
	"fable-server/internal/queue"
)

const dispatchAgeRange = "3-6"

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	OK      bool   `json:"ok"`
	Message string `json:"error"`
}

// DispatchRequest — тело запроса на запуск генерации истории.
type DispatchRequest struct {
	StoryID     string `json:"storyId"`
	Theme       string `json:"theme"`
	Tone        string `json:"tone"`
	AgeRange    string `json:"ageRange"`
	ScheduledAt string `json:"scheduledAt"`
	InitiatedBy string `json:"initiatedBy"`
}

// DispatchResponse возвращает идентификаторы созданной истории и
// задания, чтобы клиент мог следить за прогрессом.
type DispatchResponse struct {
	OK      bool     `json:"ok"`
	StoryID string   `json:"storyId"`
	JobIDs  []string `json:"jobIds"`
}

// DispatchHandler обрабатывает HTTP запросы диспатч-сервиса: создает
// черновик истории, задание story_script и публикует ссылку в очередь.
type DispatchHandler struct {
	stories interfaces.StoryRepository
	jobs    interfaces.JobRepository
	queue   interfaces.Queue
	logger  *zap.Logger
}

// NewDispatchHandler создает новый DispatchHandler.
func NewDispatchHandler(stories interfaces.StoryRepository, jobs interfaces.JobRepository, q interfaces.Queue, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{
		stories: stories,
		jobs:    jobs,
		queue:   q,
		logger:  logger.Named("DispatchHandler"),
	}
}

// RegisterRoutes настраивает маршруты обработчика.
func (h *DispatchHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.handleHealth)
	generation := router.Group("/generation")
	{
		generation.POST("/story-script", h.handleStoryScript)
		generation.GET("/stories/:id", h.handleGetStory)
	}
}

func (h *DispatchHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStoryScript принимает тему и ставит текстовый пайплайн в
// очередь. Если публикация в брокер не удалась, задание остается
// pending и будет переопубликовано реконсилятором.
func (h *DispatchHandler) handleStoryScript(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
		return
	}
	req.Theme = strings.TrimSpace(req.Theme)
	if req.Theme == "" {
		c.JSON(http.StatusBadRequest, APIError{Message: "missing theme"})
		return
	}
	ageRange := req.AgeRange
	if ageRange == "" {
		ageRange = dispatchAgeRange
	}

	ctx := c.Request.Context()

	// Клиент может принести свой storyId; невалидный или пустой
	// заменяется свежим UUID.
	storyID, err := uuid.Parse(req.StoryID)
	if err != nil {
		storyID = uuid.New()
	}

	if err := h.stories.CreateDraftStory(ctx, storyID, req.Theme, ageRange); err != nil {
		h.logger.Error("draft story creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to dispatch generation"})
		return
	}

	payload := map[string]any{
		"type":     "story_script",
		"storyId":  storyID.String(),
		"theme":    req.Theme,
		"tone":     req.Tone,
		"ageRange": ageRange,
	}
	if req.ScheduledAt != "" {
		payload["scheduledAt"] = req.ScheduledAt
	}
	if req.InitiatedBy != "" {
		payload["initiatedBy"] = req.InitiatedBy
	}
	jobID, err := h.jobs.CreateJob(ctx, storyID, models.JobTypeStoryScript, payload)
	if err != nil {
		h.logger.Error("story_script job creation failed",
			zap.String("storyID", storyID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to dispatch generation"})
		return
	}

	h.pushJob(c, storyID, jobID)

	c.JSON(http.StatusOK, DispatchResponse{
		OK:      true,
		StoryID: storyID.String(),
		JobIDs:  []string{jobID.String()},
	})
}

func (h *DispatchHandler) pushJob(c *gin.Context, storyID, jobID uuid.UUID) {
	message, err := queue.NewEnvelope(jobID.String()).Encode()
	if err == nil {
		err = h.queue.Push(c.Request.Context(), message)
	}
	if err != nil {
		h.logger.Warn("job push failed, reconciler will re-publish",
			zap.String("storyID", storyID.String()),
			zap.String("jobID", jobID.String()),
			zap.Error(err),
		)
		return
	}
	h.logger.Info("story generation dispatched",
		zap.String("storyID", storyID.String()),
		zap.String("jobID", jobID.String()),
	)
}

// handleGetStory возвращает историю по id.
func (h *DispatchHandler) handleGetStory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return
	}

	story, err := h.stories.GetStory(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, APIError{Message: "story not found"})
			return
		}
		h.logger.Error("story lookup failed", zap.String("storyID", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to load story"})
		return
	}
	c.JSON(http.StatusOK, story)
}
