package pipeline

import (
	"context"
	"strings"

	"github.com/siherrmann/regularrag/llm"
	"github.com/siherrmann/regularrag/model"
)

const extractionPrompt = `You are an entity and relation extractor for a knowledge graph.
Extract the entities and relations mentioned in the text.

Respond with a single JSON object of the form:
{
  "entities": [{"name": "...", "type": "...", "properties": {}}],
  "relations": [{"source": "...", "target": "...", "relationType": "...", "weight": 1.0}]
}

Rules:
- Every entity needs a non-empty name and type.
- Relation source and target reference entity names from this response.
- Omit weight when you have no signal for relation strength.
- Respond with the JSON object only, no prose.`

// Extractor turns raw document text into deduplicated graph entities and
// relations using an LLM.
type Extractor struct {
	provider  llm.Provider
	chunkSize int
}

// NewExtractor creates an extractor. chunkSize <= 0 selects the default
// chunk budget.
func NewExtractor(provider llm.Provider, chunkSize int) *Extractor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Extractor{
		provider:  provider,
		chunkSize: chunkSize,
	}
}

// ExtractFromText chunks the text and runs one extraction call per chunk
// sequentially at temperature zero. A chunk whose response cannot be parsed
// contributes nothing. Entities are merged case-insensitively by (name, type),
// later property values overwrite earlier ones key by key. For duplicate
// relations the first occurrence wins.
func (e *Extractor) ExtractFromText(ctx context.Context, text string) (*model.Extraction, error) {
	chunks := ChunkText(text, e.chunkSize)

	merged := &model.Extraction{}
	entityIndex := map[string]int{}
	relationSeen := map[string]bool{}

	for _, chunk := range chunks {
		response, err := e.provider.ChatCompletion(ctx, []model.Message{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: chunk},
		}, llm.ChatOptions{Temperature: 0})
		if err != nil {
			return nil, err
		}

		extraction, err := model.ParseExtraction(response.Content)
		if err != nil {
			continue
		}

		for _, entity := range extraction.Entities {
			key := strings.ToLower(entity.Name) + "::" + entity.Type
			idx, exists := entityIndex[key]
			if !exists {
				entityIndex[key] = len(merged.Entities)
				merged.Entities = append(merged.Entities, entity)
				continue
			}

			if len(entity.Properties) > 0 {
				existing := &merged.Entities[idx]
				if existing.Properties == nil {
					existing.Properties = model.Metadata{}
				}
				for k, v := range entity.Properties {
					existing.Properties[k] = v
				}
			}
		}

		for _, relation := range extraction.Relations {
			key := strings.ToLower(relation.Source) + "::" + relation.RelationType + "::" + strings.ToLower(relation.Target)
			if relationSeen[key] {
				continue
			}
			relationSeen[key] = true
			merged.Relations = append(merged.Relations, relation)
		}
	}

	return merged, nil
}
