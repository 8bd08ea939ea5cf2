package model

import "time"

// CacheEntry is a content-addressed cached response. RequestHash is the
// primary lookup key; HitCount only ever grows.
type CacheEntry struct {
	RequestHash string     `json:"request_hash"`
	Question    string     `json:"question"`
	Context     Metadata   `json:"context,omitempty"`
	Response    string     `json:"response"`
	HitCount    int        `json:"hit_count"`
	LastHitAt   *time.Time `json:"last_hit_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
