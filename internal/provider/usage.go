package provider

import "context"

// Usage is the token count of one successful completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// UsageFunc receives the usage of every successful completion. ctx is the
// context Generate was called with.
type UsageFunc func(ctx context.Context, model string, u Usage)
