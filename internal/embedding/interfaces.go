// Package embedding provides the embedding provider boundary and the
// content-addressed cache that sits in front of it.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider failed (timeout, quota,
// malformed response). It is not retried here; retry policy belongs to the
// calling layer.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Generator maps text to a fixed-length vector. Implementations are safe
// for concurrent use and must return vectors of exactly Dimension() floats.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
	Dimension() int
}
