package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	// Validation happens before any external call is attempted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the durable store is unreachable or a
	// query failed. It is distinct from ErrNotFound and from an empty
	// result, and is never used to report either.
	ErrUnavailable = errors.New("store unavailable")
)

// Cosine similarity is bounded to [-1, 1]. Thresholds outside this range
// are caller mistakes and are rejected rather than clamped.
const (
	MinSimilarity = -1.0
	MaxSimilarity = 1.0
)

// ValidateQuery checks similarity-query parameters. It returns
// ErrInvalidInput (wrapped with detail) for out-of-range values.
func ValidateQuery(threshold float64, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidInput, limit)
	}
	if threshold < MinSimilarity || threshold > MaxSimilarity {
		return fmt.Errorf("%w: threshold %v outside similarity range [%v, %v]",
			ErrInvalidInput, threshold, MinSimilarity, MaxSimilarity)
	}
	return nil
}

// ValidateEmbedding checks that a vector matches the store's fixed
// dimensionality. Violations fail; they are never truncated or padded.
func ValidateEmbedding(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: embedding is required", ErrInvalidInput)
	}
	if len(vec) != dimension {
		return fmt.Errorf("%w: embedding length %d does not match dimension %d",
			ErrInvalidInput, len(vec), dimension)
	}
	return nil
}
