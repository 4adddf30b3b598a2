// Package llm talks to chat-completion backends and turns their output
// into usable JSON objects.
package llm

import "context"

// Request is a single system+user completion call.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	// JSONMode asks the backend to return a single JSON object.
	JSONMode bool
}

// Usage holds token counts reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is the text content plus accounting data.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Backend is implemented by completion providers.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}
