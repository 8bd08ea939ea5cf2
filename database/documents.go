package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/model"
	loadSql "github.com/siherrmann/regularrag/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	UpsertDocument(ctx context.Context, doc *model.Document) error
	SelectDocument(ctx context.Context, id string) (*model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SelectDocumentsByVector(ctx context.Context, embedding []float32, limit int, screen string) ([]*model.Document, error)
	SelectDocumentsByText(ctx context.Context, query string, limit int, screen string) ([]*model.Document, error)
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, embeddingDim int, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *DocumentsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("initialize documents table", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// UpsertDocument writes or overwrites a document by id. The tsvector is
// recomputed from content inside the database. Fails when the embedding
// does not match the configured dimension.
func (h *DocumentsDBHandler) UpsertDocument(ctx context.Context, doc *model.Document) error {
	if len(doc.Embedding) > 0 && len(doc.Embedding) != h.embeddingDim {
		return helper.NewError(
			"validate document embedding",
			fmt.Errorf("%w: got %d, want %d", helper.ErrDimensionMismatch, len(doc.Embedding), h.embeddingDim),
		)
	}

	var embedding interface{}
	if len(doc.Embedding) > 0 {
		embedding = pgvector.NewVector(doc.Embedding)
	}

	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM upsert_document($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID,
		doc.Content,
		nullString(doc.Path),
		nullString(doc.Screen),
		nullString(doc.Domain),
		doc.Metadata,
		embedding,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by id.
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, id string) (*model.Document, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_document($1)`,
		id,
	)

	doc := &model.Document{}
	err := scanDocument(row, doc)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// DeleteDocument deletes a document by id.
func (h *DocumentsDBHandler) DeleteDocument(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_document($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectDocumentsByVector performs a KNN search over rows with an embedding,
// ordered by L2 distance ascending. The returned documents carry
// VectorScore = 1 / (1 + distance). Fails when the query embedding has the
// wrong dimension or contains non-finite values.
func (h *DocumentsDBHandler) SelectDocumentsByVector(ctx context.Context, embedding []float32, limit int, screen string) ([]*model.Document, error) {
	if len(embedding) != h.embeddingDim {
		return nil, helper.NewError(
			"validate query embedding",
			fmt.Errorf("%w: got %d, want %d", helper.ErrInvalidEmbedding, len(embedding), h.embeddingDim),
		)
	}
	for _, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, helper.NewError(
				"validate query embedding",
				fmt.Errorf("%w: non-finite value", helper.ErrInvalidEmbedding),
			)
		}
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_documents_by_vector($1, $2, $3)`,
		pgvector.NewVector(embedding),
		limit,
		nullString(screen),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		var path, docScreen, domain sql.NullString
		err := rows.Scan(
			&doc.ID,
			&doc.Content,
			&path,
			&docScreen,
			&domain,
			&doc.Metadata,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.VectorScore,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		doc.Path = path.String
		doc.Screen = docScreen.String
		doc.Domain = domain.String
		results = append(results, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectDocumentsByText performs a full-text search with the 'simple' query
// parser, ordered by rank descending. The returned documents carry
// TextScore = rank.
func (h *DocumentsDBHandler) SelectDocumentsByText(ctx context.Context, query string, limit int, screen string) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_documents_by_text($1, $2, $3)`,
		query,
		limit,
		nullString(screen),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		var path, docScreen, domain sql.NullString
		err := rows.Scan(
			&doc.ID,
			&doc.Content,
			&path,
			&docScreen,
			&domain,
			&doc.Metadata,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.TextScore,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		doc.Path = path.String
		doc.Screen = docScreen.String
		doc.Domain = domain.String
		results = append(results, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// scanDocument scans a document row without score columns.
func scanDocument(row *sql.Row, doc *model.Document) error {
	var path, screen, domain sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.Content,
		&path,
		&screen,
		&domain,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return err
	}

	doc.Path = path.String
	doc.Screen = screen.String
	doc.Domain = domain.String

	return nil
}

// nullString maps the empty string to NULL for optional text columns.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
