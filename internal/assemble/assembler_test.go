package assemble_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-server/internal/assemble"
)

func validStoryPayload(pageCount int) map[string]any {
	pages := make([]any, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, map[string]any{
			"page_number": i,
			"text_en":     fmt.Sprintf("Page %d text.", i),
			"summary_en":  fmt.Sprintf("Page %d summary.", i),
		})
	}
	return map[string]any{
		"title_en":    "The Brave Little Cloud",
		"synopsis_en": "A cloud learns to rain.",
		"pages":       pages,
	}
}

func validTranslationPayload(pageCount int) map[string]any {
	pages := make([]any, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, map[string]any{
			"page_number": i,
			"text_zh":     fmt.Sprintf("第%d页。", i),
		})
	}
	return map[string]any{
		"title_zh":    "勇敢的小云",
		"synopsis_zh": "一朵云学会下雨。",
		"pages":       pages,
	}
}

func validVocabularyPayload(entryCount int) map[string]any {
	entries := make([]any, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		entries = append(entries, map[string]any{
			"word":                fmt.Sprintf("word%d", i),
			"part_of_speech":      "noun",
			"definition_en":       "a thing",
			"definition_zh":       "东西",
			"example_sentence":    "This is a word.",
			"example_translation": "这是一个词。",
			"cefr_level":          "A1",
		})
	}
	return map[string]any{"entries": entries}
}

func TestAssembleStory(t *testing.T) {
	t.Run("valid ten page story", func(t *testing.T) {
		draft, err := assemble.AssembleStory(validStoryPayload(10))
		require.NoError(t, err)
		assert.Equal(t, "The Brave Little Cloud", draft.TitleEn)
		assert.Len(t, draft.Pages, 10)
		assert.Equal(t, 1, draft.Pages[0].PageNumber)
	})

	t.Run("valid story as fenced string", func(t *testing.T) {
		data, err := json.Marshal(validStoryPayload(10))
		require.NoError(t, err)
		raw := "```json\n" + string(data) + "\n```"

		draft, err := assemble.AssembleStory(raw)
		require.NoError(t, err)
		assert.Len(t, draft.Pages, 10)
	})

	t.Run("nine pages rejected", func(t *testing.T) {
		_, err := assemble.AssembleStory(validStoryPayload(9))
		assert.Error(t, err)
	})

	t.Run("eleven pages rejected", func(t *testing.T) {
		_, err := assemble.AssembleStory(validStoryPayload(11))
		assert.Error(t, err)
	})

	t.Run("model refusal surfaces sentinel", func(t *testing.T) {
		_, err := assemble.AssembleStory(`{"error":"unable_to_produce_json"}`)
		assert.ErrorIs(t, err, assemble.ErrModelRefused)
	})

	t.Run("missing title rejected", func(t *testing.T) {
		payload := validStoryPayload(10)
		delete(payload, "title_en")
		_, err := assemble.AssembleStory(payload)
		assert.Error(t, err)
	})
}

func TestAssembleTranslation(t *testing.T) {
	t.Run("valid translation", func(t *testing.T) {
		result, err := assemble.AssembleTranslation(validTranslationPayload(10))
		require.NoError(t, err)
		assert.Equal(t, "勇敢的小云", result.TitleZh)
		assert.Len(t, result.Pages, 10)
	})

	t.Run("empty text_zh rejected", func(t *testing.T) {
		payload := validTranslationPayload(10)
		pages := payload["pages"].([]any)
		pages[3].(map[string]any)["text_zh"] = ""
		_, err := assemble.AssembleTranslation(payload)
		assert.Error(t, err)
	})
}

func TestAssembleVocabulary(t *testing.T) {
	t.Run("valid ten entries", func(t *testing.T) {
		result, err := assemble.AssembleVocabulary(validVocabularyPayload(10))
		require.NoError(t, err)
		assert.Len(t, result.Entries, 10)
		assert.Equal(t, "word0", result.Entries[0].Word)
	})

	t.Run("bare array is wrapped then validated", func(t *testing.T) {
		entries := validVocabularyPayload(10)["entries"].([]any)
		data, err := json.Marshal(entries)
		require.NoError(t, err)

		result, err := assemble.AssembleVocabulary(string(data))
		require.NoError(t, err)
		assert.Len(t, result.Entries, 10)
	})

	t.Run("nine entries rejected", func(t *testing.T) {
		_, err := assemble.AssembleVocabulary(validVocabularyPayload(9))
		assert.Error(t, err)
	})
}
