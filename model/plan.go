package model

import (
	"encoding/json"
	"math"
	"strings"
)

const (
	// PlanTopKDefault is used when the planner omits top_k or returns a
	// non-finite value.
	PlanTopKDefault = 5
	// PlanTopKMin and PlanTopKMax bound the normalized top_k.
	PlanTopKMin = 1
	PlanTopKMax = 8
)

// SearchPlan is the normalized retrieval intent derived from a user message.
type SearchPlan struct {
	ShouldSearch       bool     `json:"shouldSearch"`
	SearchQuery        string   `json:"searchQuery"`
	TopK               int      `json:"topK"`
	IdentifiedEntities []string `json:"identifiedEntities,omitempty"`
}

// rawSearchPlan is the planner LLM output before normalization. TopK stays a
// float here because models emit fractional or out-of-range values.
type rawSearchPlan struct {
	ShouldSearch       *bool    `json:"shouldSearch"`
	SearchQuery        string   `json:"searchQuery"`
	TopK               *float64 `json:"topK"`
	IdentifiedEntities []string `json:"identifiedEntities"`
}

// DefaultSearchPlan is the fallback used when the planner output cannot be
// parsed: search with the user's message verbatim.
func DefaultSearchPlan(userMessage string) *SearchPlan {
	return &SearchPlan{
		ShouldSearch: true,
		SearchQuery:  userMessage,
		TopK:         PlanTopKDefault,
	}
}

// ParsePlan extracts the first {…} substring from a planner response and
// validates it against the plan schema. Any parse or validation failure
// falls back to DefaultSearchPlan(userMessage); planner errors are never
// surfaced to the caller.
func ParsePlan(content string, userMessage string) *SearchPlan {
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return DefaultSearchPlan(userMessage)
	}

	var raw rawSearchPlan
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return DefaultSearchPlan(userMessage)
	}
	if raw.ShouldSearch == nil {
		return DefaultSearchPlan(userMessage)
	}

	plan := &SearchPlan{
		ShouldSearch:       *raw.ShouldSearch,
		SearchQuery:        strings.TrimSpace(raw.SearchQuery),
		TopK:               NormalizeTopK(raw.TopK),
		IdentifiedEntities: raw.IdentifiedEntities,
	}
	if plan.SearchQuery == "" {
		plan.SearchQuery = userMessage
	}

	return plan
}

// NormalizeTopK clamps a planner-provided top_k into [1, 8] by floor, with
// the default when absent or non-finite.
func NormalizeTopK(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return PlanTopKDefault
	}
	k := int(math.Floor(*v))
	if k < PlanTopKMin {
		return PlanTopKMin
	}
	if k > PlanTopKMax {
		return PlanTopKMax
	}
	return k
}

// ExtractJSONObject returns the first {…} substring of s, spanning from the
// first opening brace to the last closing brace.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
