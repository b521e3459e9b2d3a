package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

const testDimension = 4

func newTestStore(t *testing.T) *FactStore {
	t.Helper()
	store, err := NewFactStore(":memory:", testDimension)
	if err != nil {
		t.Fatalf("NewFactStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertTestFact(t *testing.T, store *FactStore, userID string, embedding []float32, content string, createdAt time.Time) string {
	t.Helper()
	id, err := store.InsertFact(context.Background(), &types.Fact{
		UserID:    userID,
		Content:   content,
		Embedding: embedding,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("InsertFact failed: %v", err)
	}
	return id
}

func TestInsertAndGetFact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fact := &types.Fact{
		UserID:          "user-1",
		FactType:        "preference",
		Content:         "prefers dark roast coffee",
		Embedding:       []float32{0.1, 0.2, 0.3, 0.4},
		ConfidenceScore: 0.9,
		SourceMessageID: "msg-42",
	}

	id, err := store.InsertFact(ctx, fact)
	if err != nil {
		t.Fatalf("InsertFact failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty fact ID")
	}

	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.Content != fact.Content {
		t.Errorf("content = %q, want %q", got.Content, fact.Content)
	}
	if got.FactType != "preference" {
		t.Errorf("fact type = %q, want preference", got.FactType)
	}
	if got.ConfidenceScore != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.ConfidenceScore)
	}
	if got.AccessCount != 0 {
		t.Errorf("access count = %d, want 0", got.AccessCount)
	}
	if got.LastAccessedAt != nil {
		t.Error("expected nil last_accessed_at on fresh fact")
	}
	if got.SourceMessageID != "msg-42" {
		t.Errorf("source message ID = %q, want msg-42", got.SourceMessageID)
	}
	for i, v := range fact.Embedding {
		if got.Embedding[i] != v {
			t.Fatalf("embedding[%d] = %v, want %v", i, got.Embedding[i], v)
		}
	}
}

func TestInsertFactDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertFact(ctx, &types.Fact{
		UserID:    "user-1",
		Content:   "some context",
		Embedding: []float32{1, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("InsertFact failed: %v", err)
	}

	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.FactType != "context" {
		t.Errorf("default fact type = %q, want context", got.FactType)
	}
	if got.ConfidenceScore != types.DefaultConfidenceScore {
		t.Errorf("default confidence = %v, want %v", got.ConfidenceScore, types.DefaultConfidenceScore)
	}
}

func TestInsertFactValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		fact *types.Fact
	}{
		{"nil fact", nil},
		{"missing user", &types.Fact{Content: "x", Embedding: []float32{1, 0, 0, 0}}},
		{"missing content", &types.Fact{UserID: "u", Embedding: []float32{1, 0, 0, 0}}},
		{"wrong dimension", &types.Fact{UserID: "u", Content: "x", Embedding: []float32{1, 0}}},
		{"empty embedding", &types.Fact{UserID: "u", Content: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.InsertFact(ctx, tc.fact); !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestQuerySimilarOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Unit vectors at decreasing similarity to the query axis.
	insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "exact match", now)
	insertTestFact(t, store, "user-1", []float32{0.9, 0.1, 0, 0}, "near match", now)
	insertTestFact(t, store, "user-1", []float32{0, 1, 0, 0}, "orthogonal", now)
	insertTestFact(t, store, "user-2", []float32{1, 0, 0, 0}, "other owner", now)

	results, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "user-1", 0.5, 10)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	if results[0].Content != "exact match" {
		t.Errorf("first result = %q, want exact match", results[0].Content)
	}
	if results[1].Content != "near match" {
		t.Errorf("second result = %q, want near match", results[1].Content)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not ordered by similarity descending")
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("exact match similarity = %v, want ~1.0", results[0].Similarity)
	}
}

func TestQuerySimilarTieBreakByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// Identical embeddings give identical similarity; the more recent fact
	// must come first.
	insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "older", base.Add(-time.Hour))
	insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "newer", base)

	results, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "user-1", 0.5, 10)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Content != "newer" {
		t.Errorf("first result = %q, want newer", results[0].Content)
	}
	if results[1].Content != "older" {
		t.Errorf("second result = %q, want older", results[1].Content)
	}
}

func TestQuerySimilarLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, fmt.Sprintf("fact %d", i), now.Add(time.Duration(i)*time.Second))
	}

	results, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "user-1", 0.5, 3)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestQuerySimilarEmptyResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	results, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "nobody", 0.5, 10)
	if err != nil {
		t.Fatalf("QuerySimilar on empty store failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestQuerySimilarCandidateCapWarns(t *testing.T) {
	store := newTestStore(t)
	store.maxCandidates = 2
	logger, hook := logrustest.NewNullLogger()
	store.SetLogger(logger)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// The oldest fact matches the query vector exactly, but the cap keeps
	// only the two newest candidates in the scan.
	oldest := insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "oldest exact match", base)
	insertTestFact(t, store, "user-1", []float32{0, 1, 0, 0}, "middle", base.Add(time.Minute))
	insertTestFact(t, store, "user-1", []float32{0, 0, 1, 0}, "newest", base.Add(2*time.Minute))

	results, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "user-1", -1, 10)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	for _, r := range results {
		if r.FactID == oldest {
			t.Error("fact beyond the candidate cap was ranked")
		}
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a warning when the candidate cap is hit")
	}
	if entry.Level != logrus.WarnLevel {
		t.Errorf("log level = %v, want warning", entry.Level)
	}
	if entry.Data["user_id"] != "user-1" {
		t.Errorf("log user_id = %v, want user-1", entry.Data["user_id"])
	}

	// An uncapped scan stays silent.
	hook.Reset()
	store.maxCandidates = queryMaxCandidates
	if _, err := store.QuerySimilar(ctx, []float32{1, 0, 0, 0}, "user-1", -1, 10); err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	if hook.LastEntry() != nil {
		t.Error("unexpected warning below the candidate cap")
	}
}

func TestQuerySimilarValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	vec := []float32{1, 0, 0, 0}

	cases := []struct {
		name      string
		vec       []float32
		userID    string
		threshold float64
		limit     int
	}{
		{"threshold above 1", vec, "u", 1.5, 10},
		{"threshold below -1", vec, "u", -1.5, 10},
		{"zero limit", vec, "u", 0.5, 0},
		{"negative limit", vec, "u", 0.5, -1},
		{"wrong dimension", []float32{1, 0}, "u", 0.5, 10},
		{"missing user", vec, "", 0.5, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.QuerySimilar(ctx, tc.vec, tc.userID, tc.threshold, tc.limit)
			if !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRecordAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "tracked", time.Now().UTC())

	if err := store.RecordAccess(ctx, id); err != nil {
		t.Fatalf("RecordAccess failed: %v", err)
	}
	if err := store.RecordAccess(ctx, id); err != nil {
		t.Fatalf("second RecordAccess failed: %v", err)
	}

	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("access count = %d, want 2", got.AccessCount)
	}
	if got.LastAccessedAt == nil {
		t.Error("expected last_accessed_at to be set")
	}
}

func TestRecordAccessConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "hot fact", time.Now().UTC())

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.RecordAccess(ctx, id)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordAccess failed: %v", err)
		}
	}

	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.AccessCount != workers {
		t.Errorf("access count = %d, want %d", got.AccessCount, workers)
	}
}

func TestRecordAccessNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordAccess(context.Background(), "no-such-fact")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateConfidence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := insertTestFact(t, store, "user-1", []float32{1, 0, 0, 0}, "adjustable", time.Now().UTC())

	if err := store.UpdateConfidence(ctx, id, 0.35); err != nil {
		t.Fatalf("UpdateConfidence failed: %v", err)
	}
	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.ConfidenceScore != 0.35 {
		t.Errorf("confidence = %v, want 0.35", got.ConfidenceScore)
	}

	if err := store.UpdateConfidence(ctx, id, 1.5); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for score > 1, got %v", err)
	}
	if err := store.UpdateConfidence(ctx, "no-such-fact", 0.5); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	empty, err := store.UserSummary(ctx, "nobody")
	if err != nil {
		t.Fatalf("UserSummary on unknown user failed: %v", err)
	}
	if empty.TotalFacts != 0 || empty.FactTypes != 0 || empty.AvgConfidence != 0 || empty.LastUpdated != nil {
		t.Errorf("expected zero summary for unknown user, got %+v", empty)
	}

	for i, factType := range []string{"preference", "preference", "context"} {
		_, err := store.InsertFact(ctx, &types.Fact{
			UserID:          "user-1",
			FactType:        factType,
			Content:         fmt.Sprintf("fact %d", i),
			Embedding:       []float32{1, 0, 0, 0},
			ConfidenceScore: 0.5,
			CreatedAt:       now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertFact failed: %v", err)
		}
	}

	summary, err := store.UserSummary(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserSummary failed: %v", err)
	}
	if summary.TotalFacts != 3 {
		t.Errorf("total facts = %d, want 3", summary.TotalFacts)
	}
	if summary.FactTypes != 2 {
		t.Errorf("fact types = %d, want 2", summary.FactTypes)
	}
	if math.Abs(summary.AvgConfidence-0.5) > 1e-9 {
		t.Errorf("avg confidence = %v, want 0.5", summary.AvgConfidence)
	}
	if summary.LastUpdated == nil {
		t.Error("expected last updated timestamp")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	decoded, err := decodeEmbedding(encodeEmbedding(vec), len(vec))
	if err != nil {
		t.Fatalf("decodeEmbedding failed: %v", err)
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("decoded[%d] = %v, want %v", i, decoded[i], vec[i])
		}
	}

	if _, err := decodeEmbedding([]byte{1, 2, 3}, 4); err == nil {
		t.Error("expected error for truncated buffer")
	}
}
