package testutils

import (
	"context"

	"github.com/papercomputeco/psyche/pkg/llm"
)

// MockCompleter is a test completer that records requests and returns a
// canned response.
type MockCompleter struct {
	// Requests accumulates every request passed to Complete.
	Requests []*llm.CompletionRequest

	// Response is returned on success.
	Response *llm.CompletionResponse

	// Err causes Complete to fail.
	Err error
}

func NewMockCompleter(content string) *MockCompleter {
	return &MockCompleter{
		Response: &llm.CompletionResponse{
			Content: content,
			Model:   "test-model",
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
}

func (m *MockCompleter) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockCompleter) Close() error {
	return nil
}
