// Package llm defines the completion gateway used by the response
// orchestrator. Providers are pluggable; the pipeline only depends on the
// Completer interface and the provider-agnostic request/response types.
package llm

import "context"

// GenerationParams are the unified sampling parameters across providers.
type GenerationParams struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// CompletionRequest is a provider-agnostic completion request.
type CompletionRequest struct {
	// System is the system prompt.
	System string `json:"system,omitempty"`

	// Input is the user input text.
	Input string `json:"input"`

	// Params are the generation parameters.
	Params GenerationParams `json:"params,omitzero"`
}

// Usage contains token counts for accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// CompletionResponse is a provider-agnostic completion response.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that generated the response.
	Model string `json:"model,omitempty"`

	// Usage reports token counts for accounting.
	Usage Usage `json:"usage,omitzero"`
}

// Completer generates text completions.
type Completer interface {
	// Complete generates a completion for the request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Close releases any resources held by the completer.
	Close() error
}
