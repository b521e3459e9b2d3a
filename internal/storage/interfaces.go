// Package storage provides the durable store boundary for Agent Memz.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently: the fact store owns the similarity-searchable
// fact corpus, the conversation store owns dialogue bookkeeping. Backends
// exist for PostgreSQL (pgvector-indexed) and SQLite (in-process ranking).
package storage

import (
	"context"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// FactStore owns the durable fact corpus and its similarity primitive.
type FactStore interface {
	// InsertFact persists a new fact atomically and returns the
	// store-assigned identifier. The fact's embedding length must equal
	// Dimension() or the insert fails with ErrInvalidInput, with no silent
	// truncation or padding.
	InsertFact(ctx context.Context, fact *types.Fact) (string, error)

	// QuerySimilar returns the owner's facts with similarity >= threshold,
	// ordered by similarity descending and then created_at descending
	// (most recent fact wins ties), capped at limit rows. A query that
	// matches nothing returns an empty slice, not an error; an unknown
	// owner behaves as an owner with no facts.
	QuerySimilar(ctx context.Context, queryVec []float32, userID string, threshold float64, limit int) ([]types.ScoredFact, error)

	// GetFact retrieves a single fact by ID, including its embedding.
	// Returns ErrNotFound if the fact doesn't exist.
	GetFact(ctx context.Context, factID string) (*types.Fact, error)

	// RecordAccess atomically increments access_count and sets
	// last_accessed_at for the given fact. The increment happens in a
	// single storage-level statement so concurrent calls never lose
	// counts. Returns ErrNotFound if the fact doesn't exist.
	RecordAccess(ctx context.Context, factID string) error

	// UpdateConfidence sets the fact's confidence score. The update
	// formula itself is external policy; this is only the hook.
	UpdateConfidence(ctx context.Context, factID string, score float64) error

	// UserSummary returns aggregate statistics for one user's corpus.
	// An unknown user yields a zero-valued summary, not an error.
	UserSummary(ctx context.Context, userID string) (*types.MemorySummary, error)

	// Dimension returns the fixed embedding dimensionality this store
	// was created with.
	Dimension() int

	// Close releases any resources held by the store.
	Close() error
}

// NewMessage describes a dialogue turn to append to a conversation.
type NewMessage struct {
	ConversationID string
	Role           string
	Content        string
	AudioURL       string
	Embedding      []float32
	Metadata       map[string]interface{}
}

// MessageRecord is the persisted identity of an appended message.
type MessageRecord struct {
	ID        string
	CreatedAt string
}

// ConversationStore owns conversation and message bookkeeping.
type ConversationStore interface {
	// CreateConversation records a new conversation session and returns
	// its store-assigned identifier.
	CreateConversation(ctx context.Context, userID, sessionID string, metadata map[string]interface{}) (string, error)

	// AddMessage appends a message (with its embedding) to a conversation.
	AddMessage(ctx context.Context, msg *NewMessage) (*MessageRecord, error)
}
