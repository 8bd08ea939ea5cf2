package chat

import (
	"testing"

	"github.com/siherrmann/regularrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	messages := []model.Message{
		{Role: "user", Content: "What is on the checkout screen?"},
	}
	plan := &model.SearchPlan{
		ShouldSearch: true,
		SearchQuery:  "checkout screen contents",
		TopK:         5,
	}

	t.Run("Identical requests hash identically", func(t *testing.T) {
		first, err := CacheKey(messages, model.Metadata{"screen": "checkout"}, plan)
		require.NoError(t, err)
		second, err := CacheKey(messages, model.Metadata{"screen": "checkout"}, plan)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})

	t.Run("Context map order does not change the hash", func(t *testing.T) {
		// Build two maps with the same entries inserted in different order.
		contextA := model.Metadata{}
		contextA["screen"] = "checkout"
		contextA["locale"] = "de"
		contextA["tenant"] = "acme"

		contextB := model.Metadata{}
		contextB["tenant"] = "acme"
		contextB["locale"] = "de"
		contextB["screen"] = "checkout"

		first, err := CacheKey(messages, contextA, plan)
		require.NoError(t, err)
		second, err := CacheKey(messages, contextB, plan)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Nested context maps canonicalize too", func(t *testing.T) {
		first, err := CacheKey(messages, model.Metadata{"user": map[string]interface{}{"id": 1, "name": "x"}}, plan)
		require.NoError(t, err)
		second, err := CacheKey(messages, model.Metadata{"user": map[string]interface{}{"name": "x", "id": 1}}, plan)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Different plan changes the hash", func(t *testing.T) {
		first, err := CacheKey(messages, nil, plan)
		require.NoError(t, err)

		other := *plan
		other.TopK = 3
		second, err := CacheKey(messages, nil, &other)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("Different history changes the hash", func(t *testing.T) {
		first, err := CacheKey(messages, nil, plan)
		require.NoError(t, err)

		longer := append([]model.Message{{Role: "assistant", Content: "earlier answer"}}, messages...)
		second, err := CacheKey(longer, nil, plan)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("Message order matters", func(t *testing.T) {
		a := []model.Message{{Role: "user", Content: "one"}, {Role: "user", Content: "two"}}
		b := []model.Message{{Role: "user", Content: "two"}, {Role: "user", Content: "one"}}

		first, err := CacheKey(a, nil, plan)
		require.NoError(t, err)
		second, err := CacheKey(b, nil, plan)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
