// Package engine composes the embedding cache, fact store, query result
// cache, access tracker, and graph overlay into the memory API consumed by
// the rest of the system.
//
// All operations are synchronous, context-bound calls, safe for concurrent
// use: the engine holds no mutable state beyond connection handles. Cache
// failures degrade to live paths; provider and store failures propagate as
// typed errors without internal retries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/cache"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/embedding"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/graph"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

var (
	// ErrGraphDisabled is returned from graph operations when no graph
	// store was configured.
	ErrGraphDisabled = errors.New("graph overlay not configured")

	// ErrConversationsDisabled is returned from conversation operations
	// when no conversation store was configured.
	ErrConversationsDisabled = errors.New("conversation store not configured")
)

// Deps are the engine's collaborators. Facts, Embedder, and Cache are
// required; Conversations and Graph are optional features, and Extractor
// defaults to PassthroughExtractor.
type Deps struct {
	Facts         storage.FactStore
	Conversations storage.ConversationStore
	Graph         graph.Store
	Embedder      *embedding.CachedGenerator
	Cache         cache.Cache
	Extractor     Extractor
	Logger        *logrus.Logger
}

// Engine is the memory API surface.
type Engine struct {
	facts         storage.FactStore
	conversations storage.ConversationStore
	graph         graph.Store
	embedder      *embedding.CachedGenerator
	cache         cache.Cache
	sessions      *cache.SessionStore
	extractor     Extractor
	log           *logrus.Logger
}

// New builds an engine from explicit dependencies.
func New(deps Deps) (*Engine, error) {
	if deps.Facts == nil {
		return nil, errors.New("engine: fact store is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("engine: embedder is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("engine: cache is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = PassthroughExtractor{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	return &Engine{
		facts:         deps.Facts,
		conversations: deps.Conversations,
		graph:         deps.Graph,
		embedder:      deps.Embedder,
		cache:         deps.Cache,
		sessions:      cache.NewSessionStore(deps.Cache),
		extractor:     deps.Extractor,
		log:           deps.Logger,
	}, nil
}

// InsertFact embeds content through the cached generator and persists the
// fact atomically, returning the store-assigned identifier.
func (e *Engine) InsertFact(ctx context.Context, userID, factType, content, sourceMessageID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if content == "" {
		return "", fmt.Errorf("%w: fact content is required", storage.ErrInvalidInput)
	}

	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return "", err
	}

	id, err := e.facts.InsertFact(ctx, &types.Fact{
		UserID:          userID,
		FactType:        factType,
		Content:         content,
		Embedding:       vec,
		SourceMessageID: sourceMessageID,
	})
	if err != nil {
		return "", err
	}

	e.log.WithFields(logrus.Fields{
		"fact_id":   id,
		"user_id":   userID,
		"fact_type": factType,
	}).Debug("fact inserted")
	return id, nil
}

// QuerySimilar returns the owner's facts with similarity >= threshold,
// ordered by similarity descending then recency, capped at limit.
//
// The ranked list is served from the query result cache when the exact same
// (query, owner) pair was asked within the TTL; access is recorded for every
// returned fact on hit and miss alike, because access tracking measures
// "this fact was surfaced," not "a fresh computation occurred."
func (e *Engine) QuerySimilar(ctx context.Context, query, userID string, threshold float64, limit int) ([]types.ScoredFact, error) {
	if err := validateQueryInput(query, userID, threshold, limit); err != nil {
		return nil, err
	}

	if results, ok := e.cachedResult(ctx, query, userID); ok {
		e.recordAccessAll(ctx, results)
		return results, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.facts.QuerySimilar(ctx, vec, userID, threshold, limit)
	if err != nil {
		return nil, err
	}

	e.storeResult(ctx, query, userID, results)
	e.recordAccessAll(ctx, results)
	return results, nil
}

// QuerySimilarUncached bypasses both the embedding cache and the query
// result cache. Access is still recorded: the facts are surfaced either way.
func (e *Engine) QuerySimilarUncached(ctx context.Context, query, userID string, threshold float64, limit int) ([]types.ScoredFact, error) {
	if err := validateQueryInput(query, userID, threshold, limit); err != nil {
		return nil, err
	}

	vec, err := e.embedder.EmbedUncached(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.facts.QuerySimilar(ctx, vec, userID, threshold, limit)
	if err != nil {
		return nil, err
	}

	e.recordAccessAll(ctx, results)
	return results, nil
}

// RecordAccess increments the fact's access counter and stamps the access
// time. The increment is atomic at the storage layer.
func (e *Engine) RecordAccess(ctx context.Context, factID string) error {
	return e.facts.RecordAccess(ctx, factID)
}

// recordAccessAll tracks access for every surfaced fact. Failures are logged
// and swallowed: losing a usage-counter update is acceptable, failing a read
// that already has valid results is not.
func (e *Engine) recordAccessAll(ctx context.Context, results []types.ScoredFact) {
	for _, sf := range results {
		if err := e.facts.RecordAccess(ctx, sf.FactID); err != nil {
			e.log.WithError(err).WithField("fact_id", sf.FactID).Warn("access tracking failed")
		}
	}
}

// ExtractAndStoreFacts runs the extractor over content and inserts one fact
// per extracted statement, returning the new fact identifiers in order.
func (e *Engine) ExtractAndStoreFacts(ctx context.Context, userID, content, sourceMessageID, factType string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	statements, err := e.extractor.ExtractFacts(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}

	ids := make([]string, 0, len(statements))
	for _, statement := range statements {
		id, err := e.InsertFact(ctx, userID, factType, statement, sourceMessageID)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpsertEntitiesAndRelationships writes one extraction batch to the graph
// overlay. A partial failure returns *graph.PartialWriteError alongside the
// report; committed elements stay committed.
func (e *Engine) UpsertEntitiesAndRelationships(ctx context.Context, factID string, entities []types.EntityInput, relationships []types.RelationshipInput) (*graph.Report, error) {
	if e.graph == nil {
		return nil, ErrGraphDisabled
	}
	return e.graph.UpsertEntitiesAndRelationships(ctx, factID, entities, relationships)
}

// RunGraphQuery executes an arbitrary parameterized read query against the
// graph overlay.
func (e *Engine) RunGraphQuery(ctx context.Context, query string, params map[string]interface{}) ([]graph.Row, error) {
	if e.graph == nil {
		return nil, ErrGraphDisabled
	}
	return e.graph.RunQuery(ctx, query, params)
}

// UserSummary returns aggregate statistics for one user's fact corpus.
func (e *Engine) UserSummary(ctx context.Context, userID string) (*types.MemorySummary, error) {
	return e.facts.UserSummary(ctx, userID)
}

// StartConversation creates a conversation record and seeds the session
// context in the cache. The session write is best-effort.
func (e *Engine) StartConversation(ctx context.Context, userID, sessionID string, metadata map[string]interface{}) (string, error) {
	if e.conversations == nil {
		return "", ErrConversationsDisabled
	}

	conversationID, err := e.conversations.CreateConversation(ctx, userID, sessionID, metadata)
	if err != nil {
		return "", err
	}

	err = e.sessions.Put(ctx, sessionID, cache.SessionContext{
		UserID:         userID,
		ConversationID: conversationID,
		StartedAt:      time.Now().UTC(),
	})
	if err != nil {
		e.log.WithError(err).WithField("session_id", sessionID).Warn("session context write failed")
	}

	return conversationID, nil
}

// AddMessage appends a dialogue turn to a conversation. The message content
// is embedded so the dialogue stays semantically searchable; an embedding
// failure downgrades to an un-embedded message rather than losing the turn.
func (e *Engine) AddMessage(ctx context.Context, conversationID, role, content, audioURL string, metadata map[string]interface{}) (*storage.MessageRecord, error) {
	if e.conversations == nil {
		return nil, ErrConversationsDisabled
	}

	var vec []float32
	if content != "" {
		var err error
		vec, err = e.embedder.Embed(ctx, content)
		if err != nil {
			e.log.WithError(err).Warn("message embedding failed, storing without embedding")
			vec = nil
		}
	}

	return e.conversations.AddMessage(ctx, &storage.NewMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		AudioURL:       audioURL,
		Embedding:      vec,
		Metadata:       metadata,
	})
}

// Session returns the cached session context, or (nil, nil) when no session
// exists or it has expired.
func (e *Engine) Session(ctx context.Context, sessionID string) (*cache.SessionContext, error) {
	return e.sessions.Get(ctx, sessionID)
}

// TouchSession extends the session TTL without modifying its fields.
func (e *Engine) TouchSession(ctx context.Context, sessionID string) error {
	return e.sessions.Touch(ctx, sessionID)
}

// validateQueryInput checks query parameters before any external call is
// attempted.
func validateQueryInput(query, userID string, threshold float64, limit int) error {
	if query == "" {
		return fmt.Errorf("%w: query text is required", storage.ErrInvalidInput)
	}
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	return storage.ValidateQuery(threshold, limit)
}
