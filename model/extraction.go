package model

import (
	"encoding/json"
	"fmt"
)

// ExtractedEntity is a named entity returned by the extraction prompt.
type ExtractedEntity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Properties Metadata `json:"properties,omitempty"`
}

// ExtractedRelation is a relation between two extracted entities, referenced
// by name. Weight defaults to 1.0 when omitted.
type ExtractedRelation struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	RelationType string   `json:"relationType"`
	Weight       *float64 `json:"weight,omitempty"`
}

// Extraction is the validated result of one extraction call.
type Extraction struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// ParseExtraction extracts the first {…} substring from an extraction
// response and validates it against the extraction schema. Callers treat an
// error as an empty contribution for the chunk, never as a fatal failure.
func ParseExtraction(content string) (*Extraction, error) {
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in extraction response")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(obj), &extraction); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}

	for i, entity := range extraction.Entities {
		if entity.Name == "" || entity.Type == "" {
			return nil, fmt.Errorf("entity %d missing name or type", i)
		}
	}
	for i, relation := range extraction.Relations {
		if relation.Source == "" || relation.Target == "" || relation.RelationType == "" {
			return nil, fmt.Errorf("relation %d missing source, target or relation type", i)
		}
	}

	return &extraction, nil
}
