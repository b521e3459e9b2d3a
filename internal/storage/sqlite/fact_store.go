// Package sqlite provides a SQLite implementation of the fact store.
//
// SQLite has no native vector index, so similarity queries load the owner's
// candidate embeddings into Go memory and rank them by cosine similarity.
// Semantics (threshold filtering, similarity-descending order, created_at
// tie-break, limit capping) match the PostgreSQL backend exactly. This
// backend serves single-node deployments and hermetic tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// Ensure *FactStore implements storage.FactStore at compile time.
var _ storage.FactStore = (*FactStore)(nil)

// queryMaxCandidates caps how many embeddings are loaded into memory during
// a similarity query. Candidates are selected newest-first. For typical
// per-user corpora (< 10k facts) this limit is never hit; larger datasets
// should use the PostgreSQL backend's indexed search.
const queryMaxCandidates = 10_000

// timeLayout keeps a fixed-width fractional second so TEXT timestamps sort
// lexically in SQL (RFC3339Nano trims trailing zeros, which breaks lexical
// ordering). Values still parse with time.RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS memory_facts (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	fact_type         TEXT NOT NULL,
	content           TEXT NOT NULL,
	embedding         BLOB NOT NULL,
	confidence_score  REAL NOT NULL DEFAULT 0.8,
	access_count      INTEGER NOT NULL DEFAULT 0,
	last_accessed_at  TEXT,
	source_message_id TEXT,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_facts_user ON memory_facts (user_id);
CREATE INDEX IF NOT EXISTS idx_memory_facts_type ON memory_facts (user_id, fact_type);
`

// FactStore implements storage.FactStore using SQLite.
type FactStore struct {
	db            *sql.DB
	dimension     int
	maxCandidates int
	log           *logrus.Logger
}

// NewFactStore opens a SQLite database and applies the schema. A single
// connection is used so writes serialize; ":memory:" databases also depend
// on this to see a consistent store across calls.
func NewFactStore(dsn string, dimension int) (*FactStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidInput, dimension)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", storage.ErrUnavailable, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", storage.ErrUnavailable, err)
	}

	return &FactStore{
		db:            db,
		dimension:     dimension,
		maxCandidates: queryMaxCandidates,
		log:           logrus.StandardLogger(),
	}, nil
}

// SetLogger replaces the logger used for operational warnings.
func (s *FactStore) SetLogger(log *logrus.Logger) {
	if log != nil {
		s.log = log
	}
}

// Dimension returns the fixed embedding dimensionality of this store.
func (s *FactStore) Dimension() int {
	return s.dimension
}

// Close releases the database connection.
func (s *FactStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertFact persists a new fact in a single INSERT with a store-assigned
// UUID identifier.
func (s *FactStore) InsertFact(ctx context.Context, fact *types.Fact) (string, error) {
	if fact == nil {
		return "", storage.ErrInvalidInput
	}
	if fact.UserID == "" {
		return "", fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if fact.Content == "" {
		return "", fmt.Errorf("%w: fact content is required", storage.ErrInvalidInput)
	}
	if err := storage.ValidateEmbedding(fact.Embedding, s.dimension); err != nil {
		return "", err
	}

	id := uuid.NewString()
	factType := fact.FactType
	if factType == "" {
		factType = "context"
	}
	confidence := fact.ConfidenceScore
	if confidence == 0 {
		confidence = types.DefaultConfidenceScore
	}
	createdAt := fact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO memory_facts (id, user_id, fact_type, content, embedding, confidence_score, source_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		id,
		fact.UserID,
		factType,
		fact.Content,
		encodeEmbedding(fact.Embedding),
		confidence,
		nullableString(fact.SourceMessageID),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert fact: %v", storage.ErrUnavailable, err)
	}

	fact.ID = id
	fact.CreatedAt = createdAt
	return id, nil
}

// QuerySimilar loads the owner's embeddings and ranks them by cosine
// similarity in Go, applying the same threshold, ordering, tie-break, and
// limit semantics as the PostgreSQL backend.
func (s *FactStore) QuerySimilar(ctx context.Context, queryVec []float32, userID string, threshold float64, limit int) ([]types.ScoredFact, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if err := storage.ValidateQuery(threshold, limit); err != nil {
		return nil, err
	}
	if err := storage.ValidateEmbedding(queryVec, s.dimension); err != nil {
		return nil, err
	}

	const query = `
		SELECT id, content, fact_type, embedding, confidence_score, created_at
		FROM memory_facts
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, s.maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar: %v", storage.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	type candidate struct {
		scored    types.ScoredFact
		createdAt time.Time
	}
	var candidates []candidate
	scanned := 0

	for rows.Next() {
		scanned++
		var sf types.ScoredFact
		var blob []byte
		var createdAtRaw string
		if err := rows.Scan(&sf.FactID, &sf.Content, &sf.FactType, &blob, &sf.ConfidenceScore, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("%w: scan similar row: %v", storage.ErrUnavailable, err)
		}

		embedding, err := decodeEmbedding(blob, s.dimension)
		if err != nil {
			// A row with a malformed embedding cannot be ranked; skip it
			// rather than failing the whole query.
			continue
		}

		sim := cosineSimilarity(queryVec, embedding)
		if sim < threshold {
			continue
		}
		sf.Similarity = sim

		createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
		if err != nil {
			continue
		}

		candidates = append(candidates, candidate{scored: sf, createdAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate similar rows: %v", storage.ErrUnavailable, err)
	}

	if scanned >= s.maxCandidates {
		s.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"max_candidates": s.maxCandidates,
		}).Warn("similarity scan hit the candidate cap, older facts were not ranked")
	}

	// Similarity descending; ties broken by created_at descending so the
	// most recent fact wins.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].scored.Similarity != candidates[j].scored.Similarity {
			return candidates[i].scored.Similarity > candidates[j].scored.Similarity
		}
		return candidates[i].createdAt.After(candidates[j].createdAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]types.ScoredFact, len(candidates))
	for i, c := range candidates {
		results[i] = c.scored
	}
	return results, nil
}

// GetFact retrieves a single fact by ID, including its embedding.
func (s *FactStore) GetFact(ctx context.Context, factID string) (*types.Fact, error) {
	if factID == "" {
		return nil, fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, user_id, fact_type, content, embedding, confidence_score,
		       access_count, last_accessed_at, source_message_id, created_at
		FROM memory_facts
		WHERE id = ?
	`

	var fact types.Fact
	var blob []byte
	var lastAccessedAt, sourceMessageID sql.NullString
	var createdAtRaw string

	err := s.db.QueryRowContext(ctx, query, factID).Scan(
		&fact.ID,
		&fact.UserID,
		&fact.FactType,
		&fact.Content,
		&blob,
		&fact.ConfidenceScore,
		&fact.AccessCount,
		&lastAccessedAt,
		&sourceMessageID,
		&createdAtRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get fact: %v", storage.ErrUnavailable, err)
	}

	fact.Embedding, err = decodeEmbedding(blob, s.dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: decode embedding: %v", storage.ErrUnavailable, err)
	}
	if createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw); err == nil {
		fact.CreatedAt = createdAt
	}
	if lastAccessedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastAccessedAt.String); err == nil {
			fact.LastAccessedAt = &t
		}
	}
	if sourceMessageID.Valid {
		fact.SourceMessageID = sourceMessageID.String
	}

	return &fact, nil
}

// RecordAccess increments access_count and stamps last_accessed_at in one
// UPDATE; the increment is evaluated by SQLite so concurrent calls never
// lose counts.
func (s *FactStore) RecordAccess(ctx context.Context, factID string) error {
	if factID == "" {
		return fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}

	const query = `
		UPDATE memory_facts
		SET access_count = access_count + 1,
		    last_accessed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(timeLayout), factID)
	if err != nil {
		return fmt.Errorf("%w: record access: %v", storage.ErrUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: record access rows affected: %v", storage.ErrUnavailable, err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// UpdateConfidence sets the fact's confidence score.
func (s *FactStore) UpdateConfidence(ctx context.Context, factID string, score float64) error {
	if factID == "" {
		return fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: confidence score %v outside [0, 1]", storage.ErrInvalidInput, score)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE memory_facts SET confidence_score = ? WHERE id = ?`, score, factID)
	if err != nil {
		return fmt.Errorf("%w: update confidence: %v", storage.ErrUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update confidence rows affected: %v", storage.ErrUnavailable, err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// UserSummary returns aggregate statistics for one user's fact corpus.
func (s *FactStore) UserSummary(ctx context.Context, userID string) (*types.MemorySummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT COUNT(*),
		       COUNT(DISTINCT fact_type),
		       COALESCE(AVG(confidence_score), 0),
		       MAX(created_at)
		FROM memory_facts
		WHERE user_id = ?
	`

	summary := &types.MemorySummary{UserID: userID}
	var lastUpdated sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&summary.TotalFacts,
		&summary.FactTypes,
		&summary.AvgConfidence,
		&lastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: user summary: %v", storage.ErrUnavailable, err)
	}

	if lastUpdated.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastUpdated.String); err == nil {
			summary.LastUpdated = &t
		}
	}

	return summary, nil
}

// encodeEmbedding serializes a vector as little-endian IEEE 754 float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding deserializes a vector encoded by encodeEmbedding.
func decodeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// nullableString converts an empty string to a SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
