package model

import "time"

// Document represents a source document with its embedding and lexical index.
// The tsvector column is derived from Content inside the database on every
// upsert and never travels through the application.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Path      string    `json:"path,omitempty"`
	Screen    string    `json:"screen,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Results
	VectorScore float64 `json:"vector_score,omitempty"`
	TextScore   float64 `json:"text_score,omitempty"`
}

// SearchResult represents a document retrieved by hybrid search with its
// fused Reciprocal Rank Fusion score.
type SearchResult struct {
	Document    *Document `json:"document"`
	Score       float64   `json:"score"`
	VectorScore float64   `json:"vector_score,omitempty"`
	TextScore   float64   `json:"text_score,omitempty"`
}
