package model

import "time"

// Node represents a named entity in the knowledge graph. The ID is
// deterministic over (lowercased name, type), see NodeID.
type Node struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Properties Metadata  `json:"properties,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Neighbor is an adjacent node together with the connecting relation.
type Neighbor struct {
	Node         *Node   `json:"node"`
	RelationType string  `json:"relation_type"`
	Weight       float64 `json:"weight"`
}

// NodeNeighbors holds the adjacency of a node split by edge direction.
type NodeNeighbors struct {
	Outgoing []*Neighbor `json:"outgoing"`
	Incoming []*Neighbor `json:"incoming"`
}

// TraversalDirection marks which side of an edge a traversal step followed.
type TraversalDirection string

const (
	DirectionOutgoing TraversalDirection = "outgoing"
	DirectionIncoming TraversalDirection = "incoming"
)

// TraversalResult is one row of a batch multi-hop traversal.
type TraversalResult struct {
	Node         *Node              `json:"node"`
	Depth        int                `json:"depth"`
	RelationType string             `json:"relation_type"`
	Direction    TraversalDirection `json:"direction"`
	StartNodeID  string             `json:"start_node_id"`
	Path         []string           `json:"path"`
}

// Subgraph is the induced subgraph around a seed set: the seeds plus all
// traversed nodes, and exactly the edges with both endpoints inside that set.
type Subgraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// GraphPath is a weighted path between two nodes.
type GraphPath struct {
	Nodes       []*Node  `json:"nodes"`
	Relations   []string `json:"relations"`
	TotalWeight float64  `json:"total_weight"`
}
