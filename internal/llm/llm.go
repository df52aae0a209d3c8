package llm

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/copydesk/config"
)

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface that all LLM implementations must satisfy.
type Provider interface {
	// Generate sends a conversation to the given model and returns the
	// assistant text. An empty model falls back to the routing default.
	Generate(ctx context.Context, model string, messages []Message) (string, error)
}

// NewProvider creates an LLM client based on the provided configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key not set")
	}
	return newOpenAIClient(cfg), nil
}
