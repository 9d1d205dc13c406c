package prompts

import (
	"fmt"
	"strings"

	"fable-server/internal/models"
)

// Общие требования ко всем стадиям: единственный JSON объект одной
// строкой, с экранированными переводами строк, и фиксированный
// аварийный ответ при невозможности выполнить инструкцию.
const jsonOutputRules = `Output rules:
- Respond with exactly one JSON object and nothing else.
- The JSON must be parseable, on a single line, with newlines escaped as \n.
- Do not wrap the JSON in Markdown code fences.
- If you cannot produce the requested JSON, respond with exactly {"error":"unable_to_produce_json"} and nothing else.`

const contentRules = `Content rules:
- The audience is children aged 0-6. Keep language simple, warm and rhythmic.
- No violence, no scary imagery, no adult themes, no brand names.`

// StoryRequest — входные данные для промпта генерации сценария.
type StoryRequest struct {
	Theme    string
	Tone     string
	AgeRange string
}

// BuildStoryPrompt собирает пару сообщений для стадии сценария.
// Ожидаемая форма ответа: title_en, synopsis_en и ровно 10 страниц.
func BuildStoryPrompt(req StoryRequest) []models.ChatMessage {
	system := strings.Join([]string{
		"You are a children's picture-book author writing short bedtime stories in English.",
		contentRules,
		`Produce a JSON object with exactly these keys:
{"title_en": string, "synopsis_en": string, "pages": [{"page_number": int, "text_en": string, "summary_en": string}]}
- "pages" must contain exactly 10 entries, numbered 1 through 10.
- "text_en" is 2-4 short sentences of story text for that page.
- "summary_en" is a one-sentence visual description of the page, usable as an illustration prompt.`,
		jsonOutputRules,
	}, "\n\n")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a 10-page story about: %s.", req.Theme)
	if req.Tone != "" {
		fmt.Fprintf(&sb, " The tone should be %s.", req.Tone)
	}
	if req.AgeRange != "" {
		fmt.Fprintf(&sb, " Target age range: %s.", req.AgeRange)
	}

	return []models.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

// BuildTranslationPrompt собирает пару сообщений для стадии перевода.
// Страницы перевода соответствуют исходным 1:1 по page_number.
func BuildTranslationPrompt(story *models.StoryDraft) []models.ChatMessage {
	system := strings.Join([]string{
		"You are a professional translator localizing children's stories from English to Simplified Chinese.",
		contentRules,
		`Produce a JSON object with exactly these keys:
{"title_zh": string, "synopsis_zh": string, "pages": [{"page_number": int, "text_zh": string, "notes_zh": string}]}
- Translate every source page; keep the same "page_number" values.
- "text_zh" must never be empty.
- "notes_zh" may carry a short translation note or be an empty string.`,
		jsonOutputRules,
	}, "\n\n")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate this story.\nTitle: %s\nSynopsis: %s\n", story.TitleEn, story.SynopsisEn)
	for _, page := range story.Pages {
		fmt.Fprintf(&sb, "Page %d: %s\n", page.PageNumber, page.TextEn)
	}

	return []models.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

// BuildVocabularyPrompt собирает пару сообщений для стадии словаря.
// Ожидаемая форма ответа: ровно 10 записей entries.
func BuildVocabularyPrompt(story *models.StoryDraft, translation *models.TranslationResult) []models.ChatMessage {
	system := strings.Join([]string{
		"You are an English teacher preparing vocabulary cards for very young learners of English whose first language is Chinese.",
		contentRules,
		`Produce a JSON object with exactly these keys:
{"entries": [{"word": string, "part_of_speech": string, "definition_en": string, "definition_zh": string, "example_sentence": string, "example_translation": string, "cefr_level": string}]}
- "entries" must contain exactly 10 items.
- Pick concrete, picturable words that appear in the story text.
- "cefr_level" is one of A1, A2, B1.`,
		jsonOutputRules,
	}, "\n\n")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Select vocabulary from this story.\nTitle: %s / %s\n", story.TitleEn, translation.TitleZh)
	for _, page := range story.Pages {
		fmt.Fprintf(&sb, "Page %d: %s\n", page.PageNumber, page.TextEn)
	}

	return []models.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}
