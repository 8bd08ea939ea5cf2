package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/regularrag/model"
)

// cacheVersion is baked into every request hash so a format change
// invalidates all prior entries at once.
const cacheVersion = "v2"

// CacheKey computes the content-addressed hash of a request: the cache
// version, the full message history, the request context and the normalized
// plan, serialized with recursively sorted keys so map iteration order can
// never change the hash.
func CacheKey(messages []model.Message, requestContext model.Metadata, plan *model.SearchPlan) (string, error) {
	payload := map[string]interface{}{
		"cacheVersion": cacheVersion,
		"messages":     messages,
		"context":      map[string]interface{}(requestContext),
		"plan":         plan,
	}

	var b strings.Builder
	if err := writeCanonical(&b, payload); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// writeCanonical serializes a value as JSON with object keys sorted at every
// nesting level. Values are first round-tripped through encoding/json so that
// structs and maps canonicalize identically.
func writeCanonical(b *strings.Builder, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache key payload: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("unmarshal cache key payload: %w", err)
	}

	return writeCanonicalValue(b, generic)
}

func writeCanonicalValue(b *strings.Builder, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return err
			}
			b.Write(encodedKey)
			b.WriteByte(':')
			if err := writeCanonicalValue(b, v[key]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	case []interface{}:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonicalValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b.Write(encoded)
		return nil
	}
}
