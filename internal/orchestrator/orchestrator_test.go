package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/mocks"
	"fable-server/internal/models"
	"fable-server/internal/orchestrator"
	"fable-server/internal/prompts"
)

func storyStagePayload() map[string]any {
	pages := make([]any, 0, 10)
	for i := 1; i <= 10; i++ {
		pages = append(pages, map[string]any{
			"page_number": i,
			"text_en":     fmt.Sprintf("Page %d text.", i),
			"summary_en":  fmt.Sprintf("Page %d summary.", i),
		})
	}
	return map[string]any{
		"title_en":    "The Friendly Cloud",
		"synopsis_en": "A cloud makes friends.",
		"pages":       pages,
	}
}

func translationStagePayload() map[string]any {
	pages := make([]any, 0, 10)
	for i := 1; i <= 10; i++ {
		pages = append(pages, map[string]any{
			"page_number": i,
			"text_zh":     fmt.Sprintf("第%d页。", i),
		})
	}
	return map[string]any{
		"title_zh":    "友好的云",
		"synopsis_zh": "一朵云交朋友。",
		"pages":       pages,
	}
}

func vocabularyStagePayload() map[string]any {
	entries := make([]any, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, map[string]any{
			"word":                fmt.Sprintf("word%d", i),
			"part_of_speech":      "noun",
			"definition_en":       "a thing",
			"definition_zh":       "东西",
			"example_sentence":    "A sentence.",
			"example_translation": "一个句子。",
			"cefr_level":          "A1",
		})
	}
	return map[string]any{"entries": entries}
}

func stageResult(data map[string]any, tokens int) *models.ChatCompletionResult {
	return &models.ChatCompletionResult{
		Data: data,
		Usage: models.Usage{
			PromptTokens:     tokens / 2,
			CompletionTokens: tokens / 2,
			TotalTokens:      tokens,
		},
	}
}

func TestOrchestratorGenerate(t *testing.T) {
	req := prompts.StoryRequest{Theme: "friendly cloud", Tone: "warm", AgeRange: "0-6"}

	t.Run("happy path runs all three stages", func(t *testing.T) {
		aiMock := new(mocks.MockAIClient)
		recorderMock := new(mocks.MockFailureRecorder)
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(stageResult(storyStagePayload(), 1000), nil).Once()
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(stageResult(translationStagePayload(), 800), nil).Once()
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(stageResult(vocabularyStagePayload(), 600), nil).Once()

		o := orchestrator.New(aiMock, recorderMock, zap.NewNop())
		result, err := o.Generate(context.Background(), "test-story-1", req, 1)
		require.NoError(t, err)

		assert.Len(t, result.Story.Pages, 10)
		assert.Len(t, result.Translation.Pages, 10)
		assert.Len(t, result.Vocabulary.Entries, 10)
		assert.Equal(t, 1000, result.Usages.Story.TotalTokens)
		assert.Equal(t, 800, result.Usages.Translation.TotalTokens)
		assert.Equal(t, 600, result.Usages.Vocabulary.TotalTokens)
		assert.Equal(t, 2400, result.Usages.Total.TotalTokens)

		aiMock.AssertExpectations(t)
		recorderMock.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("story stage failure is recorded and re-raised", func(t *testing.T) {
		aiMock := new(mocks.MockAIClient)
		recorderMock := new(mocks.MockFailureRecorder)
		stageErr := errors.New("provider unavailable")
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(nil, stageErr).Once()
		recorderMock.On("RecordFailure", mock.Anything, mock.MatchedBy(func(fctx interfaces.FailureContext) bool {
			return fctx.Stage == "story_script" && fctx.StoryRef == "test-story-1" && fctx.Attempt == 2
		}), mock.Anything).Return(nil).Once()

		o := orchestrator.New(aiMock, recorderMock, zap.NewNop())
		_, err := o.Generate(context.Background(), "test-story-1", req, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, stageErr)

		aiMock.AssertExpectations(t)
		recorderMock.AssertExpectations(t)
	})

	t.Run("translation failure stops before vocabulary", func(t *testing.T) {
		aiMock := new(mocks.MockAIClient)
		recorderMock := new(mocks.MockFailureRecorder)
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(stageResult(storyStagePayload(), 1000), nil).Once()
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(nil, errors.New("timeout")).Once()
		recorderMock.On("RecordFailure", mock.Anything, mock.MatchedBy(func(fctx interfaces.FailureContext) bool {
			return fctx.Stage == "translation"
		}), mock.Anything).Return(nil).Once()

		o := orchestrator.New(aiMock, recorderMock, zap.NewNop())
		_, err := o.Generate(context.Background(), "test-story-1", req, 1)
		require.Error(t, err)

		aiMock.AssertNumberOfCalls(t, "CreateChatCompletion", 2)
		recorderMock.AssertExpectations(t)
	})

	t.Run("invalid stage payload fails validation", func(t *testing.T) {
		aiMock := new(mocks.MockAIClient)
		recorderMock := new(mocks.MockFailureRecorder)
		short := storyStagePayload()
		short["pages"] = short["pages"].([]any)[:5]
		aiMock.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Return(stageResult(short, 500), nil).Once()
		recorderMock.On("RecordFailure", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		o := orchestrator.New(aiMock, recorderMock, zap.NewNop())
		_, err := o.Generate(context.Background(), "test-story-1", req, 1)
		require.Error(t, err)
	})
}
