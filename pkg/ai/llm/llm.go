package llm

import "context"

// LLM is a chat completion backend.
type LLM interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error)
}

// Response is a single completion.
type Response struct {
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
	Model   string  `json:"model,omitempty"`
}

// Func adapts a function to LLM.
type Func func(ctx context.Context, messages []Message, opts ...Option) (Response, error)

func (f Func) Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error) {
	return f(ctx, messages, opts...)
}
