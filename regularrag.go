package regularrag

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/regularrag/core/chat"
	"github.com/siherrmann/regularrag/core/graph"
	"github.com/siherrmann/regularrag/core/pipeline"
	"github.com/siherrmann/regularrag/core/retrieval"
	"github.com/siherrmann/regularrag/database"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/llm"
	"github.com/siherrmann/regularrag/model"
	loadSql "github.com/siherrmann/regularrag/sql"
)

// DefaultEmbeddingDimension matches OpenAI's text-embedding-3-small.
const DefaultEmbeddingDimension = 1536

const (
	// dimensionProbeText is embedded once at startup to verify the embedder
	// matches the configured dimension before any document is written.
	dimensionProbeText = "regular-rag dimension probe"

	// ingestEmbeddingCap bounds how much of a document feeds its embedding.
	ingestEmbeddingCap = 6000
	// truncationFloor is the minimum content a boundary cut must preserve.
	truncationFloor = 3000
)

// Config configures a RegularRAG instance. Either ConnectionURL or
// ExternalClient selects the database; with an external client the caller
// keeps ownership of the connection pool.
type Config struct {
	ConnectionURL  string
	ExternalClient *sql.DB

	Provider llm.Provider
	Embedder llm.Embedder

	// EmbeddingDimension defaults to DefaultEmbeddingDimension.
	EmbeddingDimension int

	Logger *slog.Logger
}

// RegularRAG provides a unified interface to ingestion, retrieval, graph
// context and the chat orchestrator.
type RegularRAG struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Nodes     *database.NodesDBHandler
	Edges     *database.EdgesDBHandler
	Cache     *database.CacheDBHandler
	Engine    *retrieval.Engine
	Graph     *graph.Service

	orchestrator *chat.Orchestrator
	embedder     llm.Embedder
	embeddingDim int
	log          *slog.Logger
}

// New creates a RegularRAG instance: it connects to the database, loads the
// stored functions, verifies the embedder dimension with a probe embedding
// and wires all handlers and services. On any failure an owned connection
// pool is released; an external client is never closed.
func New(config *Config) (*RegularRAG, error) {
	if config == nil {
		return nil, helper.NewError("config validation", fmt.Errorf("config is nil"))
	}
	if config.Provider == nil {
		return nil, helper.NewError("config validation", fmt.Errorf("llm provider is nil"))
	}
	if config.Embedder == nil {
		return nil, helper.NewError("config validation", fmt.Errorf("embedder is nil"))
	}

	embeddingDim := config.EmbeddingDimension
	if embeddingDim <= 0 {
		embeddingDim = DefaultEmbeddingDimension
	}

	logger := config.Logger
	if logger == nil {
		opts := helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}
		logger = slog.New(helper.NewPrettyHandler(os.Stdout, opts))
	}

	var db *helper.Database
	var err error
	if config.ExternalClient != nil {
		db, err = helper.NewDatabaseFromClient("regularrag", config.ExternalClient, logger)
	} else if config.ConnectionURL != "" {
		dbConfig := helper.NewDatabaseConfigurationFromURL(config.ConnectionURL)
		db, err = helper.NewDatabase("regularrag", dbConfig, logger)
	} else {
		return nil, helper.NewError("config validation", fmt.Errorf("either connection url or external client required"))
	}
	if err != nil {
		return nil, helper.NewError("create database", err)
	}

	rag, err := build(db, config, embeddingDim, logger)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("Closing database after failed construction", "error", closeErr)
		}
		return nil, err
	}

	return rag, nil
}

func build(db *helper.Database, config *Config, embeddingDim int, logger *slog.Logger) (*RegularRAG, error) {
	err := db.Connect(context.Background())
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	probe, err := config.Embedder.CreateEmbedding(context.Background(), dimensionProbeText)
	if err != nil {
		return nil, helper.NewError("probe embedder", err)
	}
	if len(probe) != embeddingDim {
		return nil, helper.NewError(
			"probe embedder",
			fmt.Errorf("%w: embedder produces %d dimensions, configured %d", helper.ErrDimensionMismatch, len(probe), embeddingDim),
		)
	}

	documents, err := database.NewDocumentsDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	nodes, err := database.NewNodesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create nodes handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, nodes, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	cache, err := database.NewCacheDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create cache handler", err)
	}

	engine, err := retrieval.NewEngine(documents, logger)
	if err != nil {
		return nil, helper.NewError("create retrieval engine", err)
	}

	extractor := pipeline.NewExtractor(config.Provider, 0)

	graphService, err := graph.NewService(nodes, edges, extractor, config.Embedder, embeddingDim, logger)
	if err != nil {
		return nil, helper.NewError("create graph service", err)
	}

	orchestrator, err := chat.NewOrchestrator(config.Provider, config.Embedder, engine, graphService, cache, logger)
	if err != nil {
		return nil, helper.NewError("create orchestrator", err)
	}

	return &RegularRAG{
		DB:           db,
		Documents:    documents,
		Nodes:        nodes,
		Edges:        edges,
		Cache:        cache,
		Engine:       engine,
		Graph:        graphService,
		orchestrator: orchestrator,
		embedder:     config.Embedder,
		embeddingDim: embeddingDim,
		log:          logger,
	}, nil
}

// Close releases the database connection when it is owned. An external
// client stays open.
func (r *RegularRAG) Close() error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

// Query answers a conversation with the full plan, retrieve, enrich, cache
// and complete flow.
func (r *RegularRAG) Query(ctx context.Context, messages []model.Message, requestContext model.Metadata) (*model.Response, error) {
	return r.orchestrator.Query(ctx, messages, requestContext)
}

// IngestOptions carries the optional scoping attributes of a document.
type IngestOptions struct {
	Path     string
	Screen   string
	Domain   string
	Metadata model.Metadata
}

// IngestResult reports what an ingestion wrote. The created counts include
// overwrites of existing graph rows.
type IngestResult struct {
	Document     *model.Document
	NodesCreated int
	EdgesCreated int
}

// IngestDocument stores a document and feeds it into the knowledge graph.
// The stored content is never truncated; only the text fed to the embedder
// is capped, preferring a paragraph boundary, then a sentence boundary, then
// a hard cut. The graph is built from the full content.
func (r *RegularRAG) IngestDocument(ctx context.Context, content string, opts IngestOptions) (*IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, helper.NewError("ingest document", fmt.Errorf("document content is empty"))
	}

	embedding, err := r.embedder.CreateEmbedding(ctx, truncateForEmbedding(content))
	if err != nil {
		return nil, helper.NewError("embed document", err)
	}

	doc := &model.Document{
		ID:        uuid.NewString(),
		Content:   content,
		Path:      opts.Path,
		Screen:    opts.Screen,
		Domain:    opts.Domain,
		Metadata:  opts.Metadata,
		Embedding: embedding,
	}

	err = r.Documents.UpsertDocument(ctx, doc)
	if err != nil {
		return nil, helper.NewError("store document", err)
	}

	result, err := r.Graph.BuildGraphFromDocument(ctx, content)
	if err != nil {
		return nil, helper.NewError("build graph", err)
	}

	r.log.Info("Ingested document",
		slog.String("document_id", doc.ID),
		slog.Int("content_length", len(content)),
		slog.Int("graph_nodes", result.Nodes),
		slog.Int("graph_edges", result.Edges),
	)

	return &IngestResult{
		Document:     doc,
		NodesCreated: result.Nodes,
		EdgesCreated: result.Edges,
	}, nil
}

// SearchDocuments runs a hybrid search for a free-text query.
func (r *RegularRAG) SearchDocuments(ctx context.Context, query string, limit int, screen string) ([]*model.SearchResult, error) {
	embedding, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	return r.Engine.HybridSearch(ctx, query, embedding, limit, screen)
}

// EntityContext renders the graph neighborhood of the named entities.
func (r *RegularRAG) EntityContext(ctx context.Context, names []string) (string, error) {
	return r.Graph.ContextForEntities(ctx, names)
}

// PathContext renders the weighted paths between two named entities.
func (r *RegularRAG) PathContext(ctx context.Context, fromName, toName string) (string, error) {
	return r.Graph.PathContext(ctx, fromName, toName)
}

// SubgraphContext renders the one-hop subgraph around the named entities.
func (r *RegularRAG) SubgraphContext(ctx context.Context, names []string) (string, error) {
	return r.Graph.SubgraphContext(ctx, names)
}

// GetSubgraph returns the induced subgraph around the named entities.
func (r *RegularRAG) GetSubgraph(ctx context.Context, names []string, maxDepth int) (*model.Subgraph, error) {
	return r.Graph.GetSubgraph(ctx, names, maxDepth)
}

// truncateForEmbedding caps the text fed to the embedder. Within the cap it
// prefers the last paragraph break, then the last sentence break, as long as
// the cut keeps more than the floor. Otherwise it cuts hard at the cap.
func truncateForEmbedding(content string) string {
	if len(content) <= ingestEmbeddingCap {
		return content
	}

	window := content[:ingestEmbeddingCap]

	if idx := strings.LastIndex(window, "\n\n"); idx > truncationFloor {
		return window[:idx]
	}

	if idx := lastSentenceBreak(window); idx > truncationFloor {
		return window[:idx]
	}

	return window
}

// lastSentenceBreak returns the end offset of the last sentence break in s,
// where a break is a CJK full stop or a newline. Returns -1 when there is
// none.
func lastSentenceBreak(s string) int {
	best := -1
	if idx := strings.LastIndex(s, "。"); idx >= 0 {
		best = idx + len("。")
	}
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 && idx+1 > best {
		best = idx + 1
	}
	return best
}
