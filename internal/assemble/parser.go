package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseablePayload возвращается, когда все стратегии ремонта
// исчерпаны. На уровне повторов считается временной ошибкой: модель
// может выдать валидный JSON со следующей попытки.
var ErrUnparseablePayload = errors.New("payload could not be parsed as JSON")

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// Normalize приводит сырой ответ адаптера к JSON-объекту. Структурные
// значения проходят насквозь; строки идут через конвейер ремонта:
// срезание Markdown-ограждений, строгий разбор (строго разобранный
// массив сразу оборачивается в {"entries": [...]}), поиск
// сбалансированной {...} подстроки с чисткой висячих запятых, и в
// последнюю очередь поиск [...] подстроки с той же оберткой.
func Normalize(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{"entries": v}, nil
	case string:
		return normalizeString(v)
	case nil:
		return nil, ErrUnparseablePayload
	default:
		// Прочие скаляры JSON-ом объекта быть не могут
		return nil, fmt.Errorf("%w: unexpected payload type %T", ErrUnparseablePayload, raw)
	}
}

func normalizeString(raw string) (map[string]any, error) {
	text := stripFences(strings.TrimSpace(raw))

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	// Чистый массив не должен попасть в поиск объектов, иначе вместо
	// обертки вернется его первый элемент.
	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return map[string]any{"entries": arr}, nil
	}

	if obj, ok := scanBalancedObject(text); ok {
		return obj, nil
	}

	if entries, ok := scanTopLevelArray(text); ok {
		return map[string]any{"entries": entries}, nil
	}

	return nil, ErrUnparseablePayload
}

// stripFences убирает Markdown-ограждения вида ``` или ```json.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimPrefix(text, "JSON")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// scanBalancedObject ищет самую длинную сбалансированную {...}
// подстроку начиная с первой '{' и пробует разобрать каждого кандидата,
// длинные первыми, с чисткой висячих запятых перед } и ].
func scanBalancedObject(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	candidates := balancedSpans(text, start, '{', '}')
	for i := len(candidates) - 1; i >= 0; i-- {
		candidate := trailingCommaRe.ReplaceAllString(candidates[i], "$1")
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

// scanTopLevelArray пробует разобрать [...] подстроку как массив.
func scanTopLevelArray(text string) ([]any, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, false
	}

	candidates := balancedSpans(text, start, '[', ']')
	for i := len(candidates) - 1; i >= 0; i-- {
		candidate := trailingCommaRe.ReplaceAllString(candidates[i], "$1")
		var arr []any
		if err := json.Unmarshal([]byte(candidate), &arr); err == nil {
			return arr, true
		}
	}
	return nil, false
}

// balancedSpans возвращает все сбалансированные подстроки, начинающиеся
// в start, от короткой к длинной. Скобки внутри строковых литералов
// не учитываются.
func balancedSpans(text string, start int, open, close byte) []string {
	var spans []string
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
			}
		}
	}
	return spans
}
