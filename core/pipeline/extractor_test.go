package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/siherrmann/regularrag/llm"
	"github.com/siherrmann/regularrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns canned responses in order of invocation.
type scriptedProvider struct {
	responses []string
	calls     []llm.ChatOptions
}

func (p *scriptedProvider) ChatCompletion(ctx context.Context, messages []model.Message, opts llm.ChatOptions) (*llm.ChatResponse, error) {
	p.calls = append(p.calls, opts)
	if len(p.calls) > len(p.responses) {
		return nil, fmt.Errorf("unexpected call %d", len(p.calls))
	}
	return &llm.ChatResponse{Content: p.responses[len(p.calls)-1]}, nil
}

func TestExtractFromText(t *testing.T) {
	t.Run("Single chunk extraction", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [{"name": "Checkout", "type": "screen", "properties": {"color": "blue"}}],
			  "relations": [{"source": "Checkout", "target": "Cart", "relationType": "follows"}]}`,
		}}

		extractor := NewExtractor(provider, 0)
		extraction, err := extractor.ExtractFromText(context.Background(), "The checkout follows the cart.")
		require.NoError(t, err)

		require.Len(t, extraction.Entities, 1)
		assert.Equal(t, "Checkout", extraction.Entities[0].Name)
		assert.Equal(t, "screen", extraction.Entities[0].Type)

		require.Len(t, extraction.Relations, 1)
		assert.Equal(t, "follows", extraction.Relations[0].RelationType)
	})

	t.Run("Extraction runs at temperature zero", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [], "relations": []}`,
		}}

		extractor := NewExtractor(provider, 0)
		_, err := extractor.ExtractFromText(context.Background(), "anything")
		require.NoError(t, err)

		require.Len(t, provider.calls, 1)
		assert.Equal(t, 0.0, provider.calls[0].Temperature)
	})

	t.Run("One call per chunk in order", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [{"name": "First", "type": "entity"}], "relations": []}`,
			`{"entities": [{"name": "Second", "type": "entity"}], "relations": []}`,
		}}

		extractor := NewExtractor(provider, 30)
		extraction, err := extractor.ExtractFromText(context.Background(), "First paragraph here.\n\nSecond paragraph here.")
		require.NoError(t, err)

		require.Len(t, provider.calls, 2)
		require.Len(t, extraction.Entities, 2)
		assert.Equal(t, "First", extraction.Entities[0].Name)
		assert.Equal(t, "Second", extraction.Entities[1].Name)
	})

	t.Run("Unparseable chunk contributes nothing", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`sorry, I cannot help with that`,
			`{"entities": [{"name": "Survivor", "type": "entity"}], "relations": []}`,
		}}

		extractor := NewExtractor(provider, 30)
		extraction, err := extractor.ExtractFromText(context.Background(), "First paragraph here.\n\nSecond paragraph here.")
		require.NoError(t, err)

		require.Len(t, extraction.Entities, 1)
		assert.Equal(t, "Survivor", extraction.Entities[0].Name)
	})

	t.Run("Entities merge case-insensitively with property overwrite", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [{"name": "Widget", "type": "component", "properties": {"color": "red", "size": "small"}}], "relations": []}`,
			`{"entities": [{"name": "WIDGET", "type": "component", "properties": {"color": "green"}}], "relations": []}`,
		}}

		extractor := NewExtractor(provider, 30)
		extraction, err := extractor.ExtractFromText(context.Background(), "First paragraph here.\n\nSecond paragraph here.")
		require.NoError(t, err)

		require.Len(t, extraction.Entities, 1)
		assert.Equal(t, "Widget", extraction.Entities[0].Name)
		assert.Equal(t, "green", extraction.Entities[0].Properties["color"])
		assert.Equal(t, "small", extraction.Entities[0].Properties["size"])
	})

	t.Run("Same name different type stays separate", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [{"name": "Mercury", "type": "planet"}, {"name": "Mercury", "type": "element"}], "relations": []}`,
		}}

		extractor := NewExtractor(provider, 0)
		extraction, err := extractor.ExtractFromText(context.Background(), "Mercury twice.")
		require.NoError(t, err)
		assert.Len(t, extraction.Entities, 2)
	})

	t.Run("Duplicate relations keep the first occurrence", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"entities": [], "relations": [{"source": "A", "target": "B", "relationType": "linked", "weight": 2.0}]}`,
			`{"entities": [], "relations": [{"source": "a", "target": "b", "relationType": "linked", "weight": 9.0}]}`,
		}}

		extractor := NewExtractor(provider, 30)
		extraction, err := extractor.ExtractFromText(context.Background(), "First paragraph here.\n\nSecond paragraph here.")
		require.NoError(t, err)

		require.Len(t, extraction.Relations, 1)
		require.NotNil(t, extraction.Relations[0].Weight)
		assert.Equal(t, 2.0, *extraction.Relations[0].Weight)
	})

	t.Run("Empty text needs no LLM call", func(t *testing.T) {
		provider := &scriptedProvider{}
		extractor := NewExtractor(provider, 0)
		extraction, err := extractor.ExtractFromText(context.Background(), "   ")
		require.NoError(t, err)
		assert.Empty(t, extraction.Entities)
		assert.Empty(t, extraction.Relations)
		assert.Empty(t, provider.calls)
	})
}
