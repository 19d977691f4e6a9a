// Package llmutils is the completion gateway utility package
package llmutils

import (
	"fmt"

	"github.com/papercomputeco/psyche/pkg/llm"
	"github.com/papercomputeco/psyche/pkg/llm/ollama"
)

type NewCompleterOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
}

func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewCompleter(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", o.ProviderType)
	}
}
