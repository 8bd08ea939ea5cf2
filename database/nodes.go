package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/model"
	loadSql "github.com/siherrmann/regularrag/sql"
)

// NodesDBHandlerFunctions defines the interface for Nodes database operations.
type NodesDBHandlerFunctions interface {
	UpsertNode(ctx context.Context, node *model.Node) error
	DeleteNode(ctx context.Context, id string) error
	SelectNode(ctx context.Context, id string) (*model.Node, error)
	SelectNodeByName(ctx context.Context, name string) (*model.Node, error)
	SelectNodesByNames(ctx context.Context, names []string) ([]*model.Node, error)
	SelectNodesByIDs(ctx context.Context, ids []string) ([]*model.Node, error)
	SelectNodesByType(ctx context.Context, nodeType string, limit int) ([]*model.Node, error)
	SearchNodes(ctx context.Context, query string, limit int) ([]*model.Node, error)
	SelectNeighbors(ctx context.Context, nodeID string) (*model.NodeNeighbors, error)
}

// NodesDBHandler handles node-related database operations
type NodesDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewNodesDBHandler creates a new nodes database handler.
// It initializes the database connection and loads node-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewNodesDBHandler(db *helper.Database, embeddingDim int, force bool) (*NodesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	nodesDbHandler := &NodesDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadNodesSql(nodesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load nodes sql", err)
	}

	err = nodesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized NodesDBHandler")

	return nodesDbHandler, nil
}

// CreateTable creates the 'nodes' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *NodesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_nodes($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("initialize nodes table", err)
	}

	h.db.Logger.Info("Checked/created table nodes")

	return nil
}

// UpsertNode writes or overwrites a node by its deterministic id. An upsert
// without an embedding keeps an embedding already stored on the row.
func (h *NodesDBHandler) UpsertNode(ctx context.Context, node *model.Node) error {
	if len(node.Embedding) > 0 && len(node.Embedding) != h.embeddingDim {
		return helper.NewError(
			"validate node embedding",
			fmt.Errorf("%w: got %d, want %d", helper.ErrDimensionMismatch, len(node.Embedding), h.embeddingDim),
		)
	}

	var embedding interface{}
	if len(node.Embedding) > 0 {
		embedding = pgvector.NewVector(node.Embedding)
	}

	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM upsert_node($1, $2, $3, $4, $5)`,
		node.ID,
		node.Name,
		node.Type,
		node.Properties,
		embedding,
	)

	err := scanNode(row, node)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteNode deletes a node by id. Incident edges are removed by cascade.
func (h *NodesDBHandler) DeleteNode(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_node($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectNode retrieves a node by id. Returns nil when the node does not exist.
func (h *NodesDBHandler) SelectNode(ctx context.Context, id string) (*model.Node, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_node($1)`,
		id,
	)

	node := &model.Node{}
	err := scanNode(row, node)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return node, nil
}

// SelectNodeByName retrieves a node by case-insensitive exact name.
// Returns nil when no node matches.
func (h *NodesDBHandler) SelectNodeByName(ctx context.Context, name string) (*model.Node, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_node_by_name($1)`,
		name,
	)

	node := &model.Node{}
	err := scanNode(row, node)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return node, nil
}

// SelectNodesByNames retrieves all nodes matching the given names
// case-insensitively. Names without a node are simply absent from the result.
func (h *NodesDBHandler) SelectNodesByNames(ctx context.Context, names []string) ([]*model.Node, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_nodes_by_names($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// SelectNodesByIDs retrieves all nodes with the given ids.
func (h *NodesDBHandler) SelectNodesByIDs(ctx context.Context, ids []string) ([]*model.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_nodes_by_ids($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// SelectNodesByType retrieves nodes of the given type ordered by name.
func (h *NodesDBHandler) SelectNodesByType(ctx context.Context, nodeType string, limit int) ([]*model.Node, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_nodes_by_type($1, $2)`,
		nodeType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// SearchNodes performs a case-insensitive substring search on node names.
// Pattern metacharacters in the query match literally.
func (h *NodesDBHandler) SearchNodes(ctx context.Context, query string, limit int) ([]*model.Node, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM search_nodes($1, $2)`,
		escapeLikePattern(query),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// SelectNeighbors retrieves the adjacency of a node split by direction.
func (h *NodesDBHandler) SelectNeighbors(ctx context.Context, nodeID string) (*model.NodeNeighbors, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_neighbors($1)`,
		nodeID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	neighbors := &model.NodeNeighbors{}
	for rows.Next() {
		var direction string
		node := &model.Node{}
		neighbor := &model.Neighbor{Node: node}

		err := rows.Scan(
			&direction,
			&node.ID,
			&node.Name,
			&node.Type,
			&node.Properties,
			&neighbor.RelationType,
			&neighbor.Weight,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if direction == string(model.DirectionOutgoing) {
			neighbors.Outgoing = append(neighbors.Outgoing, neighbor)
		} else {
			neighbors.Incoming = append(neighbors.Incoming, neighbor)
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return neighbors, nil
}

// scanNode scans a single node row.
func scanNode(row *sql.Row, node *model.Node) error {
	return row.Scan(
		&node.ID,
		&node.Name,
		&node.Type,
		&node.Properties,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
}

// scanNodes scans all node rows of a result set.
func scanNodes(rows *sql.Rows) ([]*model.Node, error) {
	var nodes []*model.Node
	for rows.Next() {
		node := &model.Node{}
		err := rows.Scan(
			&node.ID,
			&node.Name,
			&node.Type,
			&node.Properties,
			&node.CreatedAt,
			&node.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		nodes = append(nodes, node)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

// escapeLikePattern escapes %, _ and backslash so the query matches
// literally inside an ILIKE pattern.
func escapeLikePattern(query string) string {
	escaped := strings.ReplaceAll(query, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `%`, `\%`)
	escaped = strings.ReplaceAll(escaped, `_`, `\_`)
	return escaped
}
