package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	_ "github.com/lib/pq"
	"github.com/siherrmann/regularrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNewCacheDBHandler(t *testing.T) {
	t.Run("Create handler with valid database", func(t *testing.T) {
		db := initDB(t)
		handler, err := NewCacheDBHandler(db, false)
		assert.NoError(t, err)
		assert.NotNil(t, handler)
	})

	t.Run("Create handler with nil database", func(t *testing.T) {
		handler, err := NewCacheDBHandler(nil, false)
		assert.Error(t, err)
		assert.Nil(t, handler)
	})
}

func TestCacheUpsertAndSelect(t *testing.T) {
	db := initDB(t)
	handler, err := NewCacheDBHandler(db, false)
	require.NoError(t, err)

	t.Run("Miss returns nil without error", func(t *testing.T) {
		entry, err := handler.SelectByHash(context.Background(), testHash("never stored"))
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("Upsert and select entry", func(t *testing.T) {
		entry := &model.CacheEntry{
			RequestHash: testHash("question one"),
			Question:    "What does the checkout screen show?",
			Context:     model.Metadata{"screen": "checkout"},
			Response:    "It shows the order summary.",
		}

		err := handler.Upsert(context.Background(), entry)
		require.NoError(t, err)
		assert.Equal(t, 0, entry.HitCount)
		assert.Nil(t, entry.LastHitAt)
		assert.False(t, entry.CreatedAt.IsZero())

		selected, err := handler.SelectByHash(context.Background(), entry.RequestHash)
		require.NoError(t, err)
		require.NotNil(t, selected)
		assert.Equal(t, entry.Question, selected.Question)
		assert.Equal(t, entry.Response, selected.Response)
		assert.Equal(t, "checkout", selected.Context["screen"])
	})

	t.Run("Overwrite keeps hit count and creation time", func(t *testing.T) {
		hash := testHash("question two")
		entry := &model.CacheEntry{
			RequestHash: hash,
			Question:    "Original question",
			Response:    "Original response",
		}
		require.NoError(t, handler.Upsert(context.Background(), entry))

		hit, err := handler.IncrementHitCount(context.Background(), hash)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.Equal(t, 1, hit.HitCount)

		updated := &model.CacheEntry{
			RequestHash: hash,
			Question:    "Original question",
			Response:    "Refreshed response",
		}
		require.NoError(t, handler.Upsert(context.Background(), updated))
		assert.Equal(t, 1, updated.HitCount)
		assert.Equal(t, entry.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(entry.UpdatedAt) || updated.UpdatedAt.Equal(entry.UpdatedAt))
	})
}

func TestIncrementHitCount(t *testing.T) {
	db := initDB(t)
	handler, err := NewCacheDBHandler(db, false)
	require.NoError(t, err)

	t.Run("Hits accumulate and stamp the hit time", func(t *testing.T) {
		hash := testHash("hit accounting")
		entry := &model.CacheEntry{
			RequestHash: hash,
			Question:    "How many hits?",
			Response:    "Counting.",
		}
		require.NoError(t, handler.Upsert(context.Background(), entry))

		first, err := handler.IncrementHitCount(context.Background(), hash)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, 1, first.HitCount)
		require.NotNil(t, first.LastHitAt)

		second, err := handler.IncrementHitCount(context.Background(), hash)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, 2, second.HitCount)
		require.NotNil(t, second.LastHitAt)
		assert.False(t, second.LastHitAt.Before(*first.LastHitAt))
	})

	t.Run("Missing entry returns nil", func(t *testing.T) {
		entry, err := handler.IncrementHitCount(context.Background(), testHash("not cached"))
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})
}
