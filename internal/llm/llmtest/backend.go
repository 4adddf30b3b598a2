// Package llmtest provides a scripted completion backend for tests.
package llmtest

import (
	"context"
	"sync"

	"bureaucracy-oracle/internal/llm"
)

// Backend answers every call through Respond and records the requests.
type Backend struct {
	Respond func(ctx context.Context, req llm.Request) (*llm.Response, error)

	mu    sync.Mutex
	calls []llm.Request
}

func (b *Backend) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Respond(ctx, req)
}

// Calls returns a copy of the recorded requests.
func (b *Backend) Calls() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Request, len(b.calls))
	copy(out, b.calls)
	return out
}

// Static always returns content with fixed usage.
func Static(content string) *Backend {
	return &Backend{
		Respond: func(context.Context, llm.Request) (*llm.Response, error) {
			return Reply(content), nil
		},
	}
}

// Failing always returns err.
func Failing(err error) *Backend {
	return &Backend{
		Respond: func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, err
		},
	}
}

// Reply wraps content with 1000 prompt and 500 completion tokens.
func Reply(content string) *llm.Response {
	return &llm.Response{
		Content: content,
		Model:   "openai/gpt-4o-mini",
		Usage:   llm.Usage{PromptTokens: 1000, CompletionTokens: 500},
	}
}
