package provider

import (
	"errors"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
	openai_provider "github.com/mohammad-safakhou/newscollector/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider bundles the model capabilities the collector needs from a single
// backend: tool-calling chat, plain completions and embeddings.
type Provider interface {
	core.ChatModel
	core.TextModel
	core.Embedder
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		c := openai_provider.NewClient(
			cfg.APIKey,
			cfg.Model,
			cfg.SmallModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		)
		if cfg.BaseURL != "" {
			c.SetBaseURL(cfg.BaseURL)
		}
		return c, nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
