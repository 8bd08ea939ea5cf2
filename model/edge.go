package model

import "time"

// Edge represents a typed, weighted relation between two nodes. Endpoints
// are foreign keys with cascade-on-delete; upserting an existing ID replaces
// relation type, weight and properties.
type Edge struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	RelationType string    `json:"relation_type"`
	Weight       float64   `json:"weight"`
	Properties   Metadata  `json:"properties,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
