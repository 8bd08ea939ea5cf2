package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/siherrmann/regularrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDocuments serves fixed rankings for fusion tests.
type stubDocuments struct {
	vectorDocs []*model.Document
	textDocs   []*model.Document
	vectorErr  error
	textErr    error
}

func (s *stubDocuments) UpsertDocument(ctx context.Context, doc *model.Document) error { return nil }

func (s *stubDocuments) SelectDocument(ctx context.Context, id string) (*model.Document, error) {
	return nil, nil
}

func (s *stubDocuments) DeleteDocument(ctx context.Context, id string) error { return nil }

func (s *stubDocuments) SelectDocumentsByVector(ctx context.Context, embedding []float32, limit int, screen string) ([]*model.Document, error) {
	if s.vectorErr != nil {
		return nil, s.vectorErr
	}
	if len(s.vectorDocs) > limit {
		return s.vectorDocs[:limit], nil
	}
	return s.vectorDocs, nil
}

func (s *stubDocuments) SelectDocumentsByText(ctx context.Context, query string, limit int, screen string) ([]*model.Document, error) {
	if s.textErr != nil {
		return nil, s.textErr
	}
	if len(s.textDocs) > limit {
		return s.textDocs[:limit], nil
	}
	return s.textDocs, nil
}

func doc(id string) *model.Document {
	return &model.Document{ID: id, Content: "content of " + id}
}

func TestNewEngine(t *testing.T) {
	t.Run("Nil documents handler fails", func(t *testing.T) {
		engine, err := NewEngine(nil, nil)
		assert.Error(t, err)
		assert.Nil(t, engine)
	})

	t.Run("Nil logger falls back to default", func(t *testing.T) {
		engine, err := NewEngine(&stubDocuments{}, nil)
		assert.NoError(t, err)
		assert.NotNil(t, engine)
	})
}

func TestHybridSearch(t *testing.T) {
	t.Run("Fuses rankings with reciprocal rank fusion", func(t *testing.T) {
		docs := &stubDocuments{
			vectorDocs: []*model.Document{doc("A"), doc("B")},
			textDocs:   []*model.Document{doc("B"), doc("C")},
		}
		engine, err := NewEngine(docs, nil)
		require.NoError(t, err)

		results, err := engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 5, "")
		require.NoError(t, err)
		require.Len(t, results, 3)

		// B appears in both lists: 1/62 (vector rank 2) + 1/61 (text rank 1).
		assert.Equal(t, "B", results[0].Document.ID)
		assert.InDelta(t, 1.0/62+1.0/61, results[0].Score, 1e-12)

		assert.Equal(t, "A", results[1].Document.ID)
		assert.InDelta(t, 1.0/61, results[1].Score, 1e-12)

		assert.Equal(t, "C", results[2].Document.ID)
		assert.InDelta(t, 1.0/62, results[2].Score, 1e-12)
	})

	t.Run("Equal scores keep first-seen order with vector first", func(t *testing.T) {
		docs := &stubDocuments{
			vectorDocs: []*model.Document{doc("V")},
			textDocs:   []*model.Document{doc("T")},
		}
		engine, err := NewEngine(docs, nil)
		require.NoError(t, err)

		results, err := engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 5, "")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, results[0].Score, results[1].Score)
		assert.Equal(t, "V", results[0].Document.ID)
		assert.Equal(t, "T", results[1].Document.ID)
	})

	t.Run("Result carries branch scores", func(t *testing.T) {
		vectorDoc := doc("X")
		vectorDoc.VectorScore = 0.8
		textDoc := doc("X")
		textDoc.TextScore = 0.4

		docs := &stubDocuments{
			vectorDocs: []*model.Document{vectorDoc},
			textDocs:   []*model.Document{textDoc},
		}
		engine, err := NewEngine(docs, nil)
		require.NoError(t, err)

		results, err := engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 5, "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 0.8, results[0].VectorScore)
		assert.Equal(t, 0.4, results[0].TextScore)
	})

	t.Run("Truncates to limit", func(t *testing.T) {
		docs := &stubDocuments{
			vectorDocs: []*model.Document{doc("1"), doc("2"), doc("3")},
			textDocs:   []*model.Document{doc("4"), doc("5")},
		}
		engine, err := NewEngine(docs, nil)
		require.NoError(t, err)

		results, err := engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 2, "")
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("Branch failure fails the search", func(t *testing.T) {
		docs := &stubDocuments{
			vectorErr: fmt.Errorf("vector branch down"),
			textDocs:  []*model.Document{doc("T")},
		}
		engine, err := NewEngine(docs, nil)
		require.NoError(t, err)

		_, err = engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 5, "")
		assert.Error(t, err)
	})

	t.Run("Empty branches yield empty result", func(t *testing.T) {
		engine, err := NewEngine(&stubDocuments{}, nil)
		require.NoError(t, err)

		results, err := engine.HybridSearch(context.Background(), "query", []float32{1, 0}, 5, "")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
