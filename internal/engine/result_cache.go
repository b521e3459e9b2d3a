package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/cache"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// ResultCacheTTL is how long a cached ranked result list lives. Expiry is
// passive; there is no invalidation path because a stale ranking only costs
// freshness, never correctness.
const ResultCacheTTL = time.Hour

// queryKey derives the result-cache key from the exact query text and owner.
// Textually different queries are distinct keys even when semantically
// similar; that is intentional.
func queryKey(query, userID string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return "query:" + hex.EncodeToString(h.Sum(nil))
}

// cachedResult returns the cached ranked list for (query, userID), or
// (nil, false) on miss, corruption, or cache failure. Never returns an error:
// the live query path is always available.
func (e *Engine) cachedResult(ctx context.Context, query, userID string) ([]types.ScoredFact, bool) {
	raw, err := e.cache.Get(ctx, queryKey(query, userID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.log.WithError(err).Warn("query result cache read failed")
		}
		return nil, false
	}

	var results []types.ScoredFact
	if err := json.Unmarshal(raw, &results); err != nil {
		e.log.WithError(err).Warn("query result cache entry corrupt")
		return nil, false
	}
	return results, true
}

// storeResult writes the ranked list best-effort; failures are logged and
// swallowed.
func (e *Engine) storeResult(ctx context.Context, query, userID string, results []types.ScoredFact) {
	raw, err := json.Marshal(results)
	if err != nil {
		e.log.WithError(err).Warn("query result cache encode failed")
		return
	}
	if err := e.cache.SetWithTTL(ctx, queryKey(query, userID), raw, ResultCacheTTL); err != nil {
		e.log.WithError(err).Warn("query result cache write failed")
	}
}
