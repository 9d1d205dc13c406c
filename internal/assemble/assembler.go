package assemble

import (
	"encoding/json"
	"errors"
	"fmt"

	"fable-server/internal/models"
)

// ErrModelRefused возвращается, когда модель честно ответила
// аварийным объектом {"error":"unable_to_produce_json"}.
var ErrModelRefused = errors.New("model was unable to produce the requested JSON")

// Проводные формы стадий: snake_case, как их диктуют промпты.
type storyWire struct {
	TitleEn    string `json:"title_en"`
	SynopsisEn string `json:"synopsis_en"`
	Pages      []struct {
		PageNumber int    `json:"page_number"`
		TextEn     string `json:"text_en"`
		SummaryEn  string `json:"summary_en"`
	} `json:"pages"`
}

type translationWire struct {
	TitleZh    string `json:"title_zh"`
	SynopsisZh string `json:"synopsis_zh"`
	Pages      []struct {
		PageNumber int    `json:"page_number"`
		TextZh     string `json:"text_zh"`
		NotesZh    string `json:"notes_zh"`
	} `json:"pages"`
}

type vocabularyWire struct {
	Entries []struct {
		Word               string `json:"word"`
		PartOfSpeech       string `json:"part_of_speech"`
		DefinitionEn       string `json:"definition_en"`
		DefinitionZh       string `json:"definition_zh"`
		ExampleSentence    string `json:"example_sentence"`
		ExampleTranslation string `json:"example_translation"`
		CEFRLevel          string `json:"cefr_level"`
	} `json:"entries"`
}

// AssembleStory нормализует и валидирует результат стадии сценария.
func AssembleStory(raw any) (*models.StoryDraft, error) {
	obj, err := prepare(raw, storySchema, "story")
	if err != nil {
		return nil, err
	}

	var wire storyWire
	if err := decodeInto(obj, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode story payload: %w", err)
	}

	draft := &models.StoryDraft{
		TitleEn:    wire.TitleEn,
		SynopsisEn: wire.SynopsisEn,
		Pages:      make([]models.StoryDraftPage, 0, len(wire.Pages)),
	}
	for _, p := range wire.Pages {
		draft.Pages = append(draft.Pages, models.StoryDraftPage{
			PageNumber: p.PageNumber,
			TextEn:     p.TextEn,
			SummaryEn:  p.SummaryEn,
		})
	}
	return draft, nil
}

// AssembleTranslation нормализует и валидирует результат перевода.
func AssembleTranslation(raw any) (*models.TranslationResult, error) {
	obj, err := prepare(raw, translationSchema, "translation")
	if err != nil {
		return nil, err
	}

	var wire translationWire
	if err := decodeInto(obj, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode translation payload: %w", err)
	}

	result := &models.TranslationResult{
		TitleZh:    wire.TitleZh,
		SynopsisZh: wire.SynopsisZh,
		Pages:      make([]models.TranslationPage, 0, len(wire.Pages)),
	}
	for _, p := range wire.Pages {
		result.Pages = append(result.Pages, models.TranslationPage{
			PageNumber: p.PageNumber,
			TextZh:     p.TextZh,
			NotesZh:    p.NotesZh,
		})
	}
	return result, nil
}

// AssembleVocabulary нормализует и валидирует результат стадии словаря.
func AssembleVocabulary(raw any) (*models.VocabularyResult, error) {
	obj, err := prepare(raw, vocabularySchema, "vocabulary")
	if err != nil {
		return nil, err
	}

	var wire vocabularyWire
	if err := decodeInto(obj, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary payload: %w", err)
	}

	result := &models.VocabularyResult{
		Entries: make([]models.VocabularyItem, 0, len(wire.Entries)),
	}
	for _, e := range wire.Entries {
		result.Entries = append(result.Entries, models.VocabularyItem{
			Word:               e.Word,
			PartOfSpeech:       e.PartOfSpeech,
			DefinitionEn:       e.DefinitionEn,
			DefinitionZh:       e.DefinitionZh,
			ExampleSentence:    e.ExampleSentence,
			ExampleTranslation: e.ExampleTranslation,
			CEFRLevel:          e.CEFRLevel,
		})
	}
	return result, nil
}

func prepare(raw any, schema interface{ Validate(any) error }, stage string) (map[string]any, error) {
	obj, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", stage, err)
	}

	if refusal, ok := obj["error"].(string); ok && refusal == "unable_to_produce_json" {
		return nil, fmt.Errorf("%s stage: %w", stage, ErrModelRefused)
	}

	if err := schema.Validate(normalizeNumbers(obj)); err != nil {
		return nil, fmt.Errorf("%s stage failed schema validation: %w", stage, err)
	}
	return obj, nil
}

// decodeInto перекладывает map в проводную структуру через JSON.
func decodeInto(obj map[string]any, target any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// normalizeNumbers приводит значение к дереву, которое ожидает
// jsonschema: повторный проход через encoding/json гарантирует float64
// для чисел независимо от того, как payload был получен.
func normalizeNumbers(obj map[string]any) any {
	data, err := json.Marshal(obj)
	if err != nil {
		return obj
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return obj
	}
	return out
}
