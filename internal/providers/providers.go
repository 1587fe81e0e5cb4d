// Package providers abstracts the LLM services that can supply book metadata.
package providers

import (
	"context"
)

// Config represents the configuration for an LLM request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return ""
	}
}
