package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// NodeID derives the deterministic node id for an entity. Two entities with
// the same lowercased name and type collapse to the same id.
func NodeID(name string, entityType string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(name) + "::" + entityType))
	return "node_" + hex.EncodeToString(sum[:])[:16]
}

// EdgeID derives the deterministic edge id from its endpoints and relation.
func EdgeID(sourceID string, relationType string, targetID string) string {
	return fmt.Sprintf("edge_%s_%s_%s", sourceID, relationType, targetID)
}
