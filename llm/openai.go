package llm

import (
	"context"
	"os"

	"github.com/siherrmann/regularrag/model"
)

// OpenAIProvider implements Provider and Embedder for the OpenAI API.
//
// Supported embedding models:
//
//	text-embedding-3-small  (1536 dim, default)
//	text-embedding-3-large  (3072 dim)
//	text-embedding-ada-002  (1536 dim)
type OpenAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates a provider for OpenAI. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewOpenAI(cfg Config) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &OpenAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, messages []model.Message, opts ChatOptions) (*ChatResponse, error) {
	return p.base.chatCompletion(ctx, messages, opts)
}

func (p *OpenAIProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return p.base.createEmbedding(ctx, text)
}
