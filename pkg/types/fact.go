package types

import "time"

// DefaultConfidenceScore is the confidence assigned to a fact at insert time.
// The exact confidence-update formula is external policy; stores only apply
// this default and expose an update hook.
const DefaultConfidenceScore = 0.8

// Fact is a durable, embedding-bearing statement derived from a conversation,
// owned by a single user. Facts are created once by extraction on a message
// and afterwards only their confidence score and access statistics change.
type Fact struct {
	// ID is the store-assigned opaque identifier.
	ID string `json:"id"`

	// UserID is the owner of the fact.
	UserID string `json:"user_id"`

	// FactType is a free-form category tag (e.g. "preference", "context").
	FactType string `json:"fact_type"`

	// Content is the fact text.
	Content string `json:"content"`

	// Embedding is the fixed-length vector for Content. Its length must
	// equal the embedding provider's dimensionality; stores reject inserts
	// that violate this rather than truncating or padding.
	Embedding []float32 `json:"embedding,omitempty"`

	// ConfidenceScore is the mutable confidence in the fact (0.0-1.0).
	ConfidenceScore float64 `json:"confidence_score"`

	// AccessCount is the number of times this fact has been surfaced by a
	// query. Monotonic non-decreasing, starts at 0.
	AccessCount int `json:"access_count"`

	// LastAccessedAt is nil until the fact is first surfaced.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// SourceMessageID is a weak reference to the message the fact was
	// extracted from, not an ownership relation.
	SourceMessageID string `json:"source_message_id,omitempty"`

	// CreatedAt is immutable, set at insert.
	CreatedAt time.Time `json:"created_at"`
}

// ScoredFact is one row of a similarity query result. It carries the fields
// the durable similarity primitive returns, in ranked order.
type ScoredFact struct {
	FactID          string  `json:"fact_id"`
	Content         string  `json:"content"`
	FactType        string  `json:"fact_type"`
	Similarity      float64 `json:"similarity"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// MemorySummary holds aggregate statistics about one user's fact corpus.
type MemorySummary struct {
	UserID        string     `json:"user_id"`
	TotalFacts    int        `json:"total_facts"`
	FactTypes     int        `json:"fact_types"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}
