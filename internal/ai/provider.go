// Package ai talks to an OpenAI-compatible chat-completion endpoint.
package ai

import (
	"context"
	"time"
)

// MessageRole is the speaker of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Options overrides the client defaults for one call. Zero values keep the default.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        *float64
	Timeout     time.Duration
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the first choice of a chat completion.
type Completion struct {
	ID           string
	Model        string
	Text         string
	FinishReason string
	Usage        Usage
}

// Provider produces chat completions. Errors are always *ProviderError.
type Provider interface {
	Available() bool
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}

// Float returns a pointer to v, for Options fields.
func Float(v float64) *float64 { return &v }
