package model

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting from a completion call when the provider
// supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Response is the final answer of a RAG request.
type Response struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Usage   *Usage   `json:"usage,omitempty"`
	RAG     *RAGInfo `json:"rag,omitempty"`
}

// RAGInfo carries the retrieval trace of a response: the fused search
// results and the normalized plan that produced them.
type RAGInfo struct {
	Results []*SearchResult `json:"results"`
	Plan    *SearchPlan     `json:"plan"`
}
