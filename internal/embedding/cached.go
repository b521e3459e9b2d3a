package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/cache"
)

// DefaultTTL is how long cached embeddings live. The text→vector mapping is
// immutable for a given model, so the TTL only bounds cache growth.
const DefaultTTL = 7 * 24 * time.Hour

// CachedGenerator memoizes an inner Generator through the cache boundary.
//
// The cache key is derived from the exact input text, with no normalization.
// Callers that need locale or case-insensitive dedup must normalize before
// calling. A hit returns the stored vector bit-for-bit; the cache is a pure
// memoization layer, never a source of approximate results.
//
// Cache failures (get or set) are logged and swallowed: the inner provider
// is the fallback path and a freshly computed vector is always returned.
type CachedGenerator struct {
	inner Generator
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

// NewCachedGenerator wraps inner with cache-backed memoization using DefaultTTL.
func NewCachedGenerator(inner Generator, c cache.Cache, log *logrus.Logger) *CachedGenerator {
	return NewCachedGeneratorWithTTL(inner, c, DefaultTTL, log)
}

// NewCachedGeneratorWithTTL wraps inner with a custom cache TTL.
func NewCachedGeneratorWithTTL(inner Generator, c cache.Cache, ttl time.Duration, log *logrus.Logger) *CachedGenerator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedGenerator{inner: inner, cache: c, ttl: ttl, log: log}
}

// Fingerprint returns the deterministic cache key for the exact input text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// Embed returns the vector for text, computing it via the inner provider on
// a cache miss and storing the result best-effort.
func (g *CachedGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Fingerprint(text)

	cached, err := g.cache.Get(ctx, key)
	if err == nil {
		vec, decodeErr := DecodeVector(cached, g.inner.Dimension())
		if decodeErr == nil {
			return vec, nil
		}
		g.log.WithError(decodeErr).WithField("key", key).Warn("embedding cache entry corrupt, recomputing")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		g.log.WithError(err).Warn("embedding cache read failed, falling back to provider")
	}

	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Best-effort write: a cache failure must not fail the call.
	if err := g.cache.SetWithTTL(ctx, key, EncodeVector(vec), g.ttl); err != nil {
		g.log.WithError(err).Warn("embedding cache write failed")
	}

	return vec, nil
}

// EmbedUncached bypasses the cache entirely, both lookup and store.
// It exists for callers that must not be memoized (benchmarking, tests
// that need deterministic provider call counts).
func (g *CachedGenerator) EmbedUncached(ctx context.Context, text string) ([]float32, error) {
	return g.inner.Embed(ctx, text)
}

// GetModel returns the inner provider's model name.
func (g *CachedGenerator) GetModel() string {
	return g.inner.GetModel()
}

// Dimension returns the inner provider's fixed dimensionality.
func (g *CachedGenerator) Dimension() int {
	return g.inner.Dimension()
}

// Compile-time assertion.
var _ Generator = (*CachedGenerator)(nil)

// EncodeVector serializes a vector as little-endian IEEE 754 float32 bytes.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a vector encoded by EncodeVector, validating it
// against the expected dimension.
func DecodeVector(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}

	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
