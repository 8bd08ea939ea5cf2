package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/regularrag/database"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/model"
	"golang.org/x/sync/errgroup"
)

// rrfConstant dampens the rank contribution in reciprocal rank fusion.
const rrfConstant = 60

// Engine fuses vector and full-text document search.
type Engine struct {
	documents database.DocumentsDBHandlerFunctions
	logger    *slog.Logger
}

// NewEngine creates a retrieval engine over the documents handler.
func NewEngine(documents database.DocumentsDBHandlerFunctions, logger *slog.Logger) (*Engine, error) {
	if documents == nil {
		return nil, helper.NewError("documents handler validation", fmt.Errorf("documents handler is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		documents: documents,
		logger:    logger,
	}, nil
}

// VectorSearch runs a KNN search over embedded documents.
func (e *Engine) VectorSearch(ctx context.Context, embedding []float32, limit int, screen string) ([]*model.Document, error) {
	return e.documents.SelectDocumentsByVector(ctx, embedding, limit, screen)
}

// TextSearch runs a full-text search over documents.
func (e *Engine) TextSearch(ctx context.Context, query string, limit int, screen string) ([]*model.Document, error) {
	return e.documents.SelectDocumentsByText(ctx, query, limit, screen)
}

// HybridSearch runs vector and text search concurrently and fuses both
// rankings with reciprocal rank fusion: each document scores the sum of
// 1/(60+rank) over the lists it appears in, with 1-based ranks. Documents
// with equal fused score keep their first-seen order, vector list first.
// The fused list is truncated to limit.
func (e *Engine) HybridSearch(ctx context.Context, query string, embedding []float32, limit int, screen string) ([]*model.SearchResult, error) {
	var vectorDocs, textDocs []*model.Document

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		vectorDocs, err = e.documents.SelectDocumentsByVector(groupCtx, embedding, limit, screen)
		return err
	})
	group.Go(func() error {
		var err error
		textDocs, err = e.documents.SelectDocumentsByText(groupCtx, query, limit, screen)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, helper.NewError("hybrid search", err)
	}

	results := fuseRankings(vectorDocs, textDocs)

	e.logger.Debug("Hybrid search fused rankings",
		"query", query,
		"vector_results", len(vectorDocs),
		"text_results", len(textDocs),
		"fused_results", len(results),
	)

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// fuseRankings merges two ranked document lists with reciprocal rank fusion.
func fuseRankings(vectorDocs, textDocs []*model.Document) []*model.SearchResult {
	byID := map[string]*model.SearchResult{}
	var order []*model.SearchResult

	for rank, doc := range vectorDocs {
		result := &model.SearchResult{
			Document:    doc,
			Score:       1.0 / float64(rrfConstant+rank+1),
			VectorScore: doc.VectorScore,
		}
		byID[doc.ID] = result
		order = append(order, result)
	}

	for rank, doc := range textDocs {
		contribution := 1.0 / float64(rrfConstant+rank+1)
		if existing, ok := byID[doc.ID]; ok {
			existing.Score += contribution
			existing.TextScore = doc.TextScore
			continue
		}

		result := &model.SearchResult{
			Document:  doc,
			Score:     contribution,
			TextScore: doc.TextScore,
		}
		byID[doc.ID] = result
		order = append(order, result)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Score > order[j].Score
	})

	return order
}
