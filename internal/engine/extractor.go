package engine

import (
	"context"
	"strings"
)

// Extractor turns raw message text into discrete fact statements. The actual
// NLP/LLM extraction lives outside this core; the engine only consumes its
// output.
type Extractor interface {
	ExtractFacts(ctx context.Context, text string) ([]string, error)
}

// PassthroughExtractor treats the whole message as a single fact. It is the
// default when no external extractor is wired in.
type PassthroughExtractor struct{}

var _ Extractor = PassthroughExtractor{}

// ExtractFacts returns the trimmed input as a one-element slice, or an empty
// slice for blank input.
func (PassthroughExtractor) ExtractFacts(_ context.Context, text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	return []string{trimmed}, nil
}
