package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/siherrmann/regularrag/database"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/llm"
	"github.com/siherrmann/regularrag/model"
	"golang.org/x/sync/errgroup"
)

// Traversal depths for the different context shapes.
const (
	ContextTraversalDepth = 2
	SubgraphDepth         = 1
	PathMaxDepth          = 5
)

// Extractor produces graph entities and relations from raw text.
type Extractor interface {
	ExtractFromText(ctx context.Context, text string) (*model.Extraction, error)
}

// BuildResult reports how many graph elements a document produced. Upserts
// of already existing elements count too.
type BuildResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Service maintains the knowledge graph and renders graph context strings
// for completion prompts.
type Service struct {
	nodes        database.NodesDBHandlerFunctions
	edges        database.EdgesDBHandlerFunctions
	extractor    Extractor
	embedder     llm.Embedder
	embeddingDim int
	logger       *slog.Logger
}

// NewService creates a graph service. The embedder is optional; without one
// nodes are stored without name embeddings.
func NewService(
	nodes database.NodesDBHandlerFunctions,
	edges database.EdgesDBHandlerFunctions,
	extractor Extractor,
	embedder llm.Embedder,
	embeddingDim int,
	logger *slog.Logger,
) (*Service, error) {
	if nodes == nil {
		return nil, helper.NewError("nodes handler validation", fmt.Errorf("nodes handler is nil"))
	}
	if edges == nil {
		return nil, helper.NewError("edges handler validation", fmt.Errorf("edges handler is nil"))
	}
	if extractor == nil {
		return nil, helper.NewError("extractor validation", fmt.Errorf("extractor is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		nodes:        nodes,
		edges:        edges,
		extractor:    extractor,
		embedder:     embedder,
		embeddingDim: embeddingDim,
		logger:       logger,
	}, nil
}

// BuildGraphFromDocument extracts entities and relations from the document
// content and upserts them into the graph. Name embeddings are generated
// concurrently and best-effort: a failed embedding leaves the node without
// one. A successful embedding of the wrong dimension aborts before any
// write. Relations referencing an entity missing from the extraction are
// skipped.
func (s *Service) BuildGraphFromDocument(ctx context.Context, content string) (*BuildResult, error) {
	extraction, err := s.extractor.ExtractFromText(ctx, content)
	if err != nil {
		return nil, helper.NewError("extract", err)
	}

	embeddings := make([][]float32, len(extraction.Entities))
	if s.embedder != nil {
		group, groupCtx := errgroup.WithContext(ctx)
		for i, entity := range extraction.Entities {
			group.Go(func() error {
				embedding, err := s.embedder.CreateEmbedding(groupCtx, entity.Name)
				if err != nil {
					s.logger.Warn("Embedding entity name failed", "name", entity.Name, "error", err)
					return nil
				}
				embeddings[i] = embedding
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, helper.NewError("embed entity names", err)
		}

		for i, embedding := range embeddings {
			if embedding != nil && len(embedding) != s.embeddingDim {
				return nil, helper.NewError(
					"validate entity embedding",
					fmt.Errorf("%w: got %d, want %d for %q", helper.ErrDimensionMismatch, len(embedding), s.embeddingDim, extraction.Entities[i].Name),
				)
			}
		}
	}

	result := &BuildResult{}
	idByName := map[string]string{}

	for i, entity := range extraction.Entities {
		node := &model.Node{
			ID:         model.NodeID(entity.Name, entity.Type),
			Name:       entity.Name,
			Type:       entity.Type,
			Properties: entity.Properties,
			Embedding:  embeddings[i],
		}
		if err := s.nodes.UpsertNode(ctx, node); err != nil {
			return nil, helper.NewError("upsert node", err)
		}

		idByName[strings.ToLower(entity.Name)] = node.ID
		result.Nodes++
	}

	for _, relation := range extraction.Relations {
		sourceID, sourceOK := idByName[strings.ToLower(relation.Source)]
		targetID, targetOK := idByName[strings.ToLower(relation.Target)]
		if !sourceOK || !targetOK {
			s.logger.Debug("Skipping relation with unresolved endpoint",
				"source", relation.Source,
				"target", relation.Target,
				"relation", relation.RelationType,
			)
			continue
		}

		edge := &model.Edge{
			ID:           model.EdgeID(sourceID, relation.RelationType, targetID),
			SourceID:     sourceID,
			TargetID:     targetID,
			RelationType: relation.RelationType,
		}
		if relation.Weight != nil {
			edge.Weight = *relation.Weight
		}
		if err := s.edges.UpsertEdge(ctx, edge); err != nil {
			return nil, helper.NewError("upsert edge", err)
		}

		result.Edges++
	}

	s.logger.Info("Built graph from document", "nodes", result.Nodes, "edges", result.Edges)

	return result, nil
}

// ContextForEntities resolves the given entity names and renders their graph
// neighborhood up to two hops as a text block for a completion prompt: a
// header listing the resolved names, the properties of every resolved node
// carrying any, and one section per observed traversal depth. Unresolved
// names are silently skipped; when nothing resolves the context is empty.
func (s *Service) ContextForEntities(ctx context.Context, names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}

	nodes, err := s.nodes.SelectNodesByNames(ctx, names)
	if err != nil {
		return "", helper.NewError("select nodes", err)
	}
	if len(nodes) == 0 {
		return "", nil
	}

	seedIDs := make([]string, 0, len(nodes))
	resolved := make([]string, 0, len(nodes))
	for _, node := range nodes {
		seedIDs = append(seedIDs, node.ID)
		resolved = append(resolved, node.Name)
	}

	traversed, err := s.edges.TraverseBatch(ctx, seedIDs, ContextTraversalDepth)
	if err != nil {
		return "", helper.NewError("traverse", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge graph context for: %s\n", strings.Join(resolved, ", "))

	for _, node := range nodes {
		if len(node.Properties) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nProperties of %s (%s):\n", node.Name, node.Type)
		writeProperties(&b, node.Properties)
	}

	for _, depth := range observedDepths(traversed) {
		fmt.Fprintf(&b, "\nDepth %d:\n", depth)
		for _, result := range rowsAtDepth(traversed, depth) {
			arrow := "→"
			if result.Direction == model.DirectionIncoming {
				arrow = "←"
			}
			fmt.Fprintf(&b, "%s [%s] %s (%s)\n",
				arrow,
				result.RelationType,
				result.Node.Name,
				result.Node.Type,
			)
		}
	}

	return b.String(), nil
}

// PathContext renders the weighted paths between two named entities. Returns
// an empty context when either name does not resolve or no path exists.
func (s *Service) PathContext(ctx context.Context, fromName, toName string) (string, error) {
	fromNode, err := s.nodes.SelectNodeByName(ctx, fromName)
	if err != nil {
		return "", helper.NewError("select from node", err)
	}
	toNode, err := s.nodes.SelectNodeByName(ctx, toName)
	if err != nil {
		return "", helper.NewError("select to node", err)
	}
	if fromNode == nil || toNode == nil {
		return "", nil
	}

	paths, err := s.edges.FindPaths(ctx, fromNode.ID, toNode.ID, PathMaxDepth)
	if err != nil {
		return "", helper.NewError("find paths", err)
	}
	if len(paths) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Paths from %s to %s:\n", fromNode.Name, toNode.Name)

	for _, path := range paths {
		for i, node := range path.Nodes {
			if i > 0 {
				fmt.Fprintf(&b, " -[%s]-> ", path.Relations[i-1])
			}
			b.WriteString(node.Name)
		}
		fmt.Fprintf(&b, " (total weight: %.2f)\n", path.TotalWeight)
	}

	return b.String(), nil
}

// SubgraphContext renders the one-hop induced subgraph around the given
// entity names.
func (s *Service) SubgraphContext(ctx context.Context, names []string) (string, error) {
	nodes, err := s.nodes.SelectNodesByNames(ctx, names)
	if err != nil {
		return "", helper.NewError("select nodes", err)
	}
	if len(nodes) == 0 {
		return "", nil
	}

	seedIDs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		seedIDs = append(seedIDs, node.ID)
	}

	subgraph, err := s.edges.GetSubgraph(ctx, seedIDs, SubgraphDepth)
	if err != nil {
		return "", helper.NewError("subgraph", err)
	}

	nodesByID := map[string]*model.Node{}
	for _, node := range subgraph.Nodes {
		nodesByID[node.ID] = node
	}

	var b strings.Builder
	b.WriteString("Subgraph:\n")
	b.WriteString("Entities:\n")
	for _, node := range subgraph.Nodes {
		fmt.Fprintf(&b, "- %s (%s)\n", node.Name, node.Type)
	}
	b.WriteString("Relations:\n")
	for _, edge := range subgraph.Edges {
		source, sourceOK := nodesByID[edge.SourceID]
		target, targetOK := nodesByID[edge.TargetID]
		if !sourceOK || !targetOK {
			continue
		}
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", source.Name, edge.RelationType, target.Name)
	}

	return b.String(), nil
}

// GetSubgraph exposes the induced subgraph around the given entity names.
func (s *Service) GetSubgraph(ctx context.Context, names []string, maxDepth int) (*model.Subgraph, error) {
	nodes, err := s.nodes.SelectNodesByNames(ctx, names)
	if err != nil {
		return nil, helper.NewError("select nodes", err)
	}
	if len(nodes) == 0 {
		return &model.Subgraph{}, nil
	}

	seedIDs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		seedIDs = append(seedIDs, node.ID)
	}

	return s.edges.GetSubgraph(ctx, seedIDs, maxDepth)
}

// writeProperties writes a property map with sorted keys.
func writeProperties(b *strings.Builder, properties model.Metadata) {
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(b, "  %s: %v\n", key, properties[key])
	}
}

// observedDepths returns the distinct traversal depths in ascending order.
func observedDepths(traversed []*model.TraversalResult) []int {
	seen := map[int]bool{}
	var depths []int
	for _, result := range traversed {
		if !seen[result.Depth] {
			seen[result.Depth] = true
			depths = append(depths, result.Depth)
		}
	}
	sort.Ints(depths)
	return depths
}

// rowsAtDepth filters traversal rows of one depth, ordered by node name.
func rowsAtDepth(traversed []*model.TraversalResult, depth int) []*model.TraversalResult {
	var rows []*model.TraversalResult
	for _, result := range traversed {
		if result.Depth == depth {
			rows = append(rows, result)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Node.Name < rows[j].Node.Name
	})

	return rows
}
