package models

// ChatMessage — одно сообщение диалога для chat-completions API.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// ChatCompletionParams describes a single text-generation request.
// Model and credentials come from configuration, not from callers.
type ChatCompletionParams struct {
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// Usage — счетчики токенов одного вызова AI провайдера.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add добавляет счетчики другого вызова к текущим.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatCompletionResult holds the provider response: Data is the decoded
// JSON value when the payload parses, otherwise Raw carries the string.
type ChatCompletionResult struct {
	Data  any
	Raw   string
	Usage Usage
}
