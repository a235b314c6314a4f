// Package llm abstracts the completion backends that extraction dispatches
// to. Providers are interchangeable behind Complete; callers own timeouts and
// never inspect the returned text.
package llm

import (
	"context"
	"fmt"
)

// ProviderName identifies a completion backend.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOllama    ProviderName = "ollama"
)

// CompleteOptions tunes a single completion. Nil selects the provider's
// defaults.
type CompleteOptions struct {
	Temperature *float32
	MaxTokens   int
}

// ProviderConfig carries what NewProvider needs to build a backend.
type ProviderConfig struct {
	Name       ProviderName
	APIKey     string
	Model      string
	OllamaHost string
}

// Provider is a completion backend. Complete sends one system prompt and one
// user prompt and returns the model's text verbatim.
type Provider interface {
	Complete(ctx context.Context, system, prompt string, opts *CompleteOptions) (string, error)
}

// NewProvider builds the backend named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case ProviderOpenAI:
		return newOpenAI(cfg.APIKey, cfg.Model), nil
	case ProviderAnthropic:
		return newAnthropic(cfg.APIKey, cfg.Model), nil
	case ProviderOllama:
		return newOllama(cfg.OllamaHost, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Name)
}
