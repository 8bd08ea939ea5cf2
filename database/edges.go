package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/model"
	loadSql "github.com/siherrmann/regularrag/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	UpsertEdge(ctx context.Context, edge *model.Edge) error
	DeleteEdge(ctx context.Context, id string) error
	SelectEdge(ctx context.Context, id string) (*model.Edge, error)
	TraverseBatch(ctx context.Context, seedIDs []string, maxDepth int) ([]*model.TraversalResult, error)
	SelectSubgraphEdges(ctx context.Context, nodeIDs []string) ([]*model.Edge, error)
	GetSubgraph(ctx context.Context, seedIDs []string, maxDepth int) (*model.Subgraph, error)
	FindPaths(ctx context.Context, fromID string, toID string, maxDepth int) ([]*model.GraphPath, error)
}

// EdgesDBHandler handles edge-related database operations.
// It depends on the nodes handler for hydrating traversal and path results.
type EdgesDBHandler struct {
	db    *helper.Database
	nodes NodesDBHandlerFunctions
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, nodes NodesDBHandlerFunctions, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if nodes == nil {
		return nil, helper.NewError("nodes handler validation", fmt.Errorf("nodes handler is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db:    db,
		nodes: nodes,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		return helper.NewError("initialize edges table", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// UpsertEdge writes or overwrites an edge by id. An unset weight is stored
// as the default 1.0. Both endpoints must exist as nodes.
func (h *EdgesDBHandler) UpsertEdge(ctx context.Context, edge *model.Edge) error {
	var weight interface{}
	if edge.Weight != 0 {
		weight = edge.Weight
	}

	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM upsert_edge($1, $2, $3, $4, $5, $6)`,
		edge.ID,
		edge.SourceID,
		edge.TargetID,
		edge.RelationType,
		weight,
		edge.Properties,
	)

	err := scanEdgeRow(row, edge)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteEdge deletes an edge by id.
func (h *EdgesDBHandler) DeleteEdge(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEdge retrieves an edge by id. Returns nil when the edge does not exist.
func (h *EdgesDBHandler) SelectEdge(ctx context.Context, id string) (*model.Edge, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_edge($1)`,
		id,
	)

	edge := &model.Edge{}
	err := scanEdgeRow(row, edge)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return edge, nil
}

// TraverseBatch walks the graph from all seed ids at once up to maxDepth hops
// in both edge directions. Each reachable node appears once at its minimal
// depth. Seeds themselves are not part of the result.
func (h *EdgesDBHandler) TraverseBatch(ctx context.Context, seedIDs []string, maxDepth int) ([]*model.TraversalResult, error) {
	if len(seedIDs) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM traverse_nodes($1, $2)`,
		pq.Array(seedIDs),
		maxDepth,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.TraversalResult
	for rows.Next() {
		node := &model.Node{}
		result := &model.TraversalResult{Node: node}
		var direction string

		err := rows.Scan(
			&node.ID,
			&node.Name,
			&node.Type,
			&node.Properties,
			&result.Depth,
			&result.RelationType,
			&direction,
			&result.StartNodeID,
			pq.Array(&result.Path),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		result.Direction = model.TraversalDirection(direction)
		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectSubgraphEdges retrieves all edges whose both endpoints lie in the
// given node set.
func (h *EdgesDBHandler) SelectSubgraphEdges(ctx context.Context, nodeIDs []string) ([]*model.Edge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_subgraph_edges($1)`,
		pq.Array(nodeIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge := &model.Edge{}
		err := rows.Scan(
			&edge.ID,
			&edge.SourceID,
			&edge.TargetID,
			&edge.RelationType,
			&edge.Weight,
			&edge.Properties,
			&edge.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// GetSubgraph builds the induced subgraph around the seed ids: the seeds plus
// all nodes reachable within maxDepth hops, and exactly the edges connecting
// nodes inside that set.
func (h *EdgesDBHandler) GetSubgraph(ctx context.Context, seedIDs []string, maxDepth int) (*model.Subgraph, error) {
	if len(seedIDs) == 0 {
		return &model.Subgraph{}, nil
	}

	traversed, err := h.TraverseBatch(ctx, seedIDs, maxDepth)
	if err != nil {
		return nil, helper.NewError("traverse", err)
	}

	idSet := make(map[string]bool, len(seedIDs)+len(traversed))
	ids := make([]string, 0, len(seedIDs)+len(traversed))
	for _, id := range seedIDs {
		if !idSet[id] {
			idSet[id] = true
			ids = append(ids, id)
		}
	}
	for _, result := range traversed {
		if !idSet[result.Node.ID] {
			idSet[result.Node.ID] = true
			ids = append(ids, result.Node.ID)
		}
	}

	nodes, err := h.nodes.SelectNodesByIDs(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select nodes", err)
	}

	edges, err := h.SelectSubgraphEdges(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select edges", err)
	}

	return &model.Subgraph{Nodes: nodes, Edges: edges}, nil
}

// FindPaths finds up to five cycle-free paths between two nodes, cheapest
// accumulated edge weight first. Edges are walked in both directions.
func (h *EdgesDBHandler) FindPaths(ctx context.Context, fromID string, toID string, maxDepth int) ([]*model.GraphPath, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM find_weighted_paths($1, $2, $3)`,
		fromID,
		toID,
		maxDepth,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	type rawPath struct {
		ids         []string
		relations   []string
		totalWeight float64
	}

	var rawPaths []rawPath
	idSet := make(map[string]bool)
	var ids []string
	for rows.Next() {
		var raw rawPath
		err := rows.Scan(
			pq.Array(&raw.ids),
			pq.Array(&raw.relations),
			&raw.totalWeight,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		rawPaths = append(rawPaths, raw)
		for _, id := range raw.ids {
			if !idSet[id] {
				idSet[id] = true
				ids = append(ids, id)
			}
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	if len(rawPaths) == 0 {
		return nil, nil
	}

	nodes, err := h.nodes.SelectNodesByIDs(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select nodes", err)
	}

	nodesByID := make(map[string]*model.Node, len(nodes))
	for _, node := range nodes {
		nodesByID[node.ID] = node
	}

	var paths []*model.GraphPath
	for _, raw := range rawPaths {
		path := &model.GraphPath{
			Relations:   raw.relations,
			TotalWeight: raw.totalWeight,
		}

		complete := true
		for _, id := range raw.ids {
			node, ok := nodesByID[id]
			if !ok {
				complete = false
				break
			}
			path.Nodes = append(path.Nodes, node)
		}
		if !complete {
			continue
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// scanEdgeRow scans a single edge row.
func scanEdgeRow(row *sql.Row, edge *model.Edge) error {
	return row.Scan(
		&edge.ID,
		&edge.SourceID,
		&edge.TargetID,
		&edge.RelationType,
		&edge.Weight,
		&edge.Properties,
		&edge.CreatedAt,
	)
}
