package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/regularrag/database"
	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/llm"
	"github.com/siherrmann/regularrag/model"
)

// CachedResponseID marks responses served from the cache.
const CachedResponseID = "cached"

const completionTemperature = 0.7

// Retriever runs the fused document search.
type Retriever interface {
	HybridSearch(ctx context.Context, query string, embedding []float32, limit int, screen string) ([]*model.SearchResult, error)
}

// GraphEnricher renders graph context for identified entities.
type GraphEnricher interface {
	ContextForEntities(ctx context.Context, names []string) (string, error)
}

// Orchestrator runs the plan, retrieve, enrich, cache and complete flow for
// one chat request.
type Orchestrator struct {
	provider  llm.Provider
	embedder  llm.Embedder
	retriever Retriever
	graph     GraphEnricher
	cache     database.CacheDBHandlerFunctions
	logger    *slog.Logger
}

// NewOrchestrator creates a chat orchestrator. The graph enricher and cache
// are optional; without them enrichment and caching are skipped.
func NewOrchestrator(
	provider llm.Provider,
	embedder llm.Embedder,
	retriever Retriever,
	graph GraphEnricher,
	cache database.CacheDBHandlerFunctions,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if provider == nil {
		return nil, helper.NewError("provider validation", fmt.Errorf("llm provider is nil"))
	}
	if embedder == nil {
		return nil, helper.NewError("embedder validation", fmt.Errorf("embedder is nil"))
	}
	if retriever == nil {
		return nil, helper.NewError("retriever validation", fmt.Errorf("retriever is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		provider:  provider,
		embedder:  embedder,
		retriever: retriever,
		graph:     graph,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Query answers the conversation. The latest user message drives planning
// and retrieval; requestContext carries request metadata such as the screen
// the user is on, which scopes retrieval and is part of the cache identity.
func (o *Orchestrator) Query(ctx context.Context, messages []model.Message, requestContext model.Metadata) (*model.Response, error) {
	userMessage := lastUserMessage(messages)

	plan := o.plan(ctx, userMessage)

	hash, err := CacheKey(messages, requestContext, plan)
	if err != nil {
		return nil, helper.NewError("cache key", err)
	}

	cached, err := o.lookupCache(ctx, hash)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	var contextParts []string
	var results []*model.SearchResult

	if plan.ShouldSearch {
		embedding, err := o.embedder.CreateEmbedding(ctx, plan.SearchQuery)
		if err != nil {
			return nil, helper.NewError("embed search query", err)
		}

		results, err = o.retriever.HybridSearch(ctx, plan.SearchQuery, embedding, plan.TopK, screenOf(requestContext))
		if err != nil {
			return nil, helper.NewError("hybrid search", err)
		}

		if documents := joinDocuments(results); documents != "" {
			contextParts = append(contextParts, documents)
		}
	}

	if o.graph != nil && len(plan.IdentifiedEntities) > 0 {
		graphContext, err := o.graph.ContextForEntities(ctx, plan.IdentifiedEntities)
		if err != nil {
			return nil, helper.NewError("graph context", err)
		}
		if graphContext != "" {
			contextParts = append(contextParts, graphContext)
		}
	}

	completion, err := o.provider.ChatCompletion(ctx, completionMessages(messages, contextParts), llm.ChatOptions{
		Temperature: completionTemperature,
	})
	if err != nil {
		return nil, helper.NewError("completion", err)
	}

	err = o.saveCache(ctx, hash, userMessage, requestContext, completion.Content)
	if err != nil {
		return nil, err
	}

	return &model.Response{
		ID:      completion.ID,
		Content: completion.Content,
		Usage:   completion.Usage,
		RAG: &model.RAGInfo{
			Results: results,
			Plan:    plan,
		},
	}, nil
}

// plan runs the planner at temperature zero. Planner failures of any kind
// fall back to searching with the user's message verbatim.
func (o *Orchestrator) plan(ctx context.Context, userMessage string) *model.SearchPlan {
	response, err := o.provider.ChatCompletion(ctx, []model.Message{
		{Role: "system", Content: plannerPrompt},
		{Role: "user", Content: userMessage},
	}, llm.ChatOptions{Temperature: 0})
	if err != nil {
		o.logger.Warn("Planner call failed, using default plan", "error", err)
		return model.DefaultSearchPlan(userMessage)
	}

	return model.ParsePlan(response.Content, userMessage)
}

// lookupCache returns a cached response and bumps its hit count, or nil on
// miss.
func (o *Orchestrator) lookupCache(ctx context.Context, hash string) (*model.Response, error) {
	if o.cache == nil {
		return nil, nil
	}

	entry, err := o.cache.SelectByHash(ctx, hash)
	if err != nil {
		return nil, helper.NewError("cache lookup", err)
	}
	if entry == nil {
		return nil, nil
	}

	if _, err := o.cache.IncrementHitCount(ctx, hash); err != nil {
		return nil, helper.NewError("cache hit accounting", err)
	}

	o.logger.Info("Serving cached response", "hash", hash)

	return &model.Response{
		ID:      CachedResponseID,
		Content: entry.Response,
	}, nil
}

// saveCache stores the completed response.
func (o *Orchestrator) saveCache(ctx context.Context, hash, question string, requestContext model.Metadata, response string) error {
	if o.cache == nil {
		return nil
	}

	err := o.cache.Upsert(ctx, &model.CacheEntry{
		RequestHash: hash,
		Question:    question,
		Context:     requestContext,
		Response:    response,
	})
	if err != nil {
		return helper.NewError("cache save", err)
	}

	return nil
}

// completionMessages prepends the system prompt, with the retrieved context
// appended to the preamble, to the original conversation.
func completionMessages(messages []model.Message, contextParts []string) []model.Message {
	systemContent := completionPreamble
	if len(contextParts) > 0 {
		systemContent += "\n\n" + strings.Join(contextParts, "\n\n")
	}

	completion := make([]model.Message, 0, len(messages)+1)
	completion = append(completion, model.Message{Role: "system", Content: systemContent})
	completion = append(completion, messages...)
	return completion
}

// joinDocuments concatenates the retrieved document contents.
func joinDocuments(results []*model.SearchResult) string {
	var contents []string
	for _, result := range results {
		if result.Document != nil && result.Document.Content != "" {
			contents = append(contents, result.Document.Content)
		}
	}
	return strings.Join(contents, "\n\n")
}

// lastUserMessage returns the content of the latest user turn, or the empty
// string when the conversation has none.
func lastUserMessage(messages []model.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// screenOf reads the screen scope from the request context.
func screenOf(requestContext model.Metadata) string {
	if requestContext == nil {
		return ""
	}
	if screen, ok := requestContext["screen"].(string); ok {
		return screen
	}
	return ""
}
