package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fable-server/internal/assemble"
	"fable-server/internal/interfaces"
	"fable-server/internal/models"
	"fable-server/internal/prompts"
)

// Температуры стадий: сценарий творческий, перевод и словарь строгие.
const (
	storyTemperature       = 0.8
	translationTemperature = 0.2
	vocabularyTemperature  = 0.2
)

// StageUsages агрегирует расход токенов по стадиям одного запуска.
type StageUsages struct {
	Story       models.Usage `json:"story"`
	Translation models.Usage `json:"translation"`
	Vocabulary  models.Usage `json:"vocabulary"`
	Total       models.Usage `json:"total"`
}

// Result — полный результат текстового пайплайна.
type Result struct {
	Story       *models.StoryDraft
	Translation *models.TranslationResult
	Vocabulary  *models.VocabularyResult
	Usages      StageUsages
}

// Orchestrator последовательно выполняет три текстовые стадии.
// Записей в базу не делает: персистентность принадлежит координатору.
type Orchestrator struct {
	ai       interfaces.AIClient
	recorder interfaces.FailureRecorder
	logger   *zap.Logger
}

// New создает оркестратор текстовых стадий.
func New(ai interfaces.AIClient, recorder interfaces.FailureRecorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		ai:       ai,
		recorder: recorder,
		logger:   logger.Named("Orchestrator"),
	}
}

// Generate выполняет сценарий -> перевод -> словарь. Ошибка стадии
// уходит в рекордер с контекстом {storyRef, stage, attempt} и
// пробрасывается без изменений, чтобы воркер применил свою политику
// повторов. Успешные стадии не перезапускаются.
func (o *Orchestrator) Generate(ctx context.Context, storyRef string, req prompts.StoryRequest, attempt int) (*Result, error) {
	result := &Result{}

	story, usage, err := o.runStoryStage(ctx, req)
	if err != nil {
		o.recordStageFailure(ctx, storyRef, "story_script", attempt, err)
		return nil, err
	}
	result.Story = story
	result.Usages.Story = usage
	result.Usages.Total.Add(usage)

	translation, usage, err := o.runTranslationStage(ctx, story)
	if err != nil {
		o.recordStageFailure(ctx, storyRef, "translation", attempt, err)
		return nil, err
	}
	result.Translation = translation
	result.Usages.Translation = usage
	result.Usages.Total.Add(usage)

	vocabulary, usage, err := o.runVocabularyStage(ctx, story, translation)
	if err != nil {
		o.recordStageFailure(ctx, storyRef, "vocabulary", attempt, err)
		return nil, err
	}
	result.Vocabulary = vocabulary
	result.Usages.Vocabulary = usage
	result.Usages.Total.Add(usage)

	o.logger.Info("text pipeline completed",
		zap.String("storyRef", storyRef),
		zap.String("title", story.TitleEn),
		zap.Int("totalTokens", result.Usages.Total.TotalTokens),
	)
	return result, nil
}

func (o *Orchestrator) runStoryStage(ctx context.Context, req prompts.StoryRequest) (*models.StoryDraft, models.Usage, error) {
	resp, err := o.ai.CreateChatCompletion(ctx, models.ChatCompletionParams{
		Messages:    prompts.BuildStoryPrompt(req),
		Temperature: storyTemperature,
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("story stage: %w", err)
	}

	story, err := assemble.AssembleStory(payloadOf(resp))
	if err != nil {
		return nil, resp.Usage, err
	}
	return story, resp.Usage, nil
}

func (o *Orchestrator) runTranslationStage(ctx context.Context, story *models.StoryDraft) (*models.TranslationResult, models.Usage, error) {
	resp, err := o.ai.CreateChatCompletion(ctx, models.ChatCompletionParams{
		Messages:    prompts.BuildTranslationPrompt(story),
		Temperature: translationTemperature,
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("translation stage: %w", err)
	}

	translation, err := assemble.AssembleTranslation(payloadOf(resp))
	if err != nil {
		return nil, resp.Usage, err
	}
	return translation, resp.Usage, nil
}

func (o *Orchestrator) runVocabularyStage(ctx context.Context, story *models.StoryDraft, translation *models.TranslationResult) (*models.VocabularyResult, models.Usage, error) {
	resp, err := o.ai.CreateChatCompletion(ctx, models.ChatCompletionParams{
		Messages:    prompts.BuildVocabularyPrompt(story, translation),
		Temperature: vocabularyTemperature,
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("vocabulary stage: %w", err)
	}

	vocabulary, err := assemble.AssembleVocabulary(payloadOf(resp))
	if err != nil {
		return nil, resp.Usage, err
	}
	return vocabulary, resp.Usage, nil
}

func (o *Orchestrator) recordStageFailure(ctx context.Context, storyRef, stage string, attempt int, cause error) {
	if recErr := o.recorder.RecordFailure(ctx, interfaces.FailureContext{
		StoryRef: storyRef,
		Stage:    stage,
		Attempt:  attempt,
	}, cause); recErr != nil {
		o.logger.Error("failed to record stage failure", zap.String("stage", stage), zap.Error(recErr))
	}
}

// payloadOf предпочитает декодированное значение сырой строке.
func payloadOf(resp *models.ChatCompletionResult) any {
	if resp.Data != nil {
		return resp.Data
	}
	return resp.Raw
}
