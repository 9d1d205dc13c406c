package assemble

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Схемы стадий. Стадия сценария и словаря фиксируют ровно 10 элементов;
// перевод длину не фиксирует, но каждый text_zh должен быть непустым.
const (
	storySchemaJSON = `{
  "type": "object",
  "required": ["title_en", "synopsis_en", "pages"],
  "properties": {
    "title_en": {"type": "string", "minLength": 1},
    "synopsis_en": {"type": "string"},
    "pages": {
      "type": "array",
      "minItems": 10,
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["page_number", "text_en", "summary_en"],
        "properties": {
          "page_number": {"type": "integer", "minimum": 1, "maximum": 10},
          "text_en": {"type": "string", "minLength": 1},
          "summary_en": {"type": "string"}
        }
      }
    }
  }
}`

	translationSchemaJSON = `{
  "type": "object",
  "required": ["title_zh", "synopsis_zh", "pages"],
  "properties": {
    "title_zh": {"type": "string"},
    "synopsis_zh": {"type": "string"},
    "pages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["page_number", "text_zh"],
        "properties": {
          "page_number": {"type": "integer", "minimum": 1, "maximum": 10},
          "text_zh": {"type": "string", "minLength": 1},
          "notes_zh": {"type": "string"}
        }
      }
    }
  }
}`

	vocabularySchemaJSON = `{
  "type": "object",
  "required": ["entries"],
  "properties": {
    "entries": {
      "type": "array",
      "minItems": 10,
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["word", "part_of_speech", "definition_en", "definition_zh", "example_sentence", "example_translation"],
        "properties": {
          "word": {"type": "string", "minLength": 1},
          "part_of_speech": {"type": "string"},
          "definition_en": {"type": "string"},
          "definition_zh": {"type": "string"},
          "example_sentence": {"type": "string"},
          "example_translation": {"type": "string"},
          "cefr_level": {"type": "string"}
        }
      }
    }
  }
}`
)

var (
	storySchema       = mustCompileSchema("story.json", storySchemaJSON)
	translationSchema = mustCompileSchema("translation.json", translationSchemaJSON)
	vocabularySchema  = mustCompileSchema("vocabulary.json", vocabularySchemaJSON)
)

func mustCompileSchema(name, document string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(document)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}
