package llm

import (
	"context"
	"fmt"

	"github.com/siherrmann/regularrag/model"
)

// Provider is the interface for chat completions.
type Provider interface {
	// ChatCompletion sends a chat completion request.
	ChatCompletion(ctx context.Context, messages []model.Message, opts ChatOptions) (*ChatResponse, error)
}

// Embedder is the interface for embedding generation.
type Embedder interface {
	// CreateEmbedding generates an embedding vector for a single text.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChatOptions holds per-request completion parameters.
type ChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	ID      string       `json:"id"`
	Content string       `json:"content"`
	Usage   *model.Usage `json:"usage,omitempty"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider"` // openai, ollama, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// NewProvider creates a chat provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// NewEmbedder creates an embedding provider from configuration.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("embedding provider not specified")
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
