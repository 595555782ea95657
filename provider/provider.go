package provider

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/pdfchat/config"
	openai_provider "github.com/mohammad-safakhou/pdfchat/provider/openai"
)

// Client represents different model providers.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface that all model service implementations must satisfy.
// Implementations must be safe for concurrent use so one instance can be
// shared per process.
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// New creates a model service client from the provided configuration. Groq
// and the Hugging Face router both speak the OpenAI wire format, so the
// openai client covers every configured endpoint today.
func New(cfg config.ProviderConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("provider api key not set")
		}
		return openai_provider.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported provider type")
	}
}
