// Package graph provides the optional entity/relationship overlay on top of
// the fact corpus. Nodes and edges are typed, carry property bags, and always
// reference the fact that produced them.
//
// Batch writes are not atomic: entities are written before the relationships
// that reference them, and a failure partway through is reported explicitly
// via PartialWriteError rather than rolled back or swallowed.
package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// ErrUnavailable indicates the graph store is unreachable or a query failed
// outright.
var ErrUnavailable = errors.New("graph store unavailable")

// ErrInvalidIdentifier indicates an entity label or relationship type that
// cannot be used safely. Labels and relationship types cannot be bound as
// query parameters, so they are validated against identifierPattern before
// any query is assembled.
var ErrInvalidIdentifier = errors.New("invalid graph identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is usable as a node label or
// relationship type.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Row is one result row from a graph read query: an ordered field set.
type Row struct {
	Keys   []string      `json:"keys"`
	Values []interface{} `json:"values"`
}

// ElementFailure records one entity or relationship that could not be
// written, with the reason.
type ElementFailure struct {
	// Key identifies the element: the entity key, or "from->to" for a
	// relationship.
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report describes the outcome of one batch write. Successes and failures
// are both listed so callers can see exactly what is now in the graph.
type Report struct {
	EntitiesCreated     []string         `json:"entities_created"`
	RelationshipsMade   []string         `json:"relationships_made"`
	FailedEntities      []ElementFailure `json:"failed_entities,omitempty"`
	FailedRelationships []ElementFailure `json:"failed_relationships,omitempty"`
}

// Partial reports whether any element in the batch failed.
func (r *Report) Partial() bool {
	return len(r.FailedEntities) > 0 || len(r.FailedRelationships) > 0
}

// PartialWriteError is returned when some but not all elements of a batch
// write succeeded. The successful elements are committed and stay committed;
// the Report identifies exactly which elements failed.
type PartialWriteError struct {
	FactID string
	Report Report
}

func (e *PartialWriteError) Error() string {
	var failed []string
	for _, f := range e.Report.FailedEntities {
		failed = append(failed, fmt.Sprintf("entity %s (%s)", f.Key, f.Reason))
	}
	for _, f := range e.Report.FailedRelationships {
		failed = append(failed, fmt.Sprintf("relationship %s (%s)", f.Key, f.Reason))
	}
	return fmt.Sprintf("partial graph write for fact %s: %d of %d elements failed: %s",
		e.FactID,
		len(failed),
		len(failed)+len(e.Report.EntitiesCreated)+len(e.Report.RelationshipsMade),
		strings.Join(failed, "; "))
}

// Store is the graph overlay boundary.
type Store interface {
	// UpsertEntitiesAndRelationships writes one extraction batch. Entities
	// are merged by (label, key) so repeated extractions reuse nodes;
	// relationships are created between endpoints that must already exist
	// in the graph or earlier in the same batch. The returned Report is
	// always populated; if any element failed, err is a *PartialWriteError
	// carrying the same report.
	UpsertEntitiesAndRelationships(ctx context.Context, factID string, entities []types.EntityInput, relationships []types.RelationshipInput) (*Report, error)

	// RunQuery executes an arbitrary read query with bound parameters and
	// returns rows as ordered field sets. This is an escape hatch for
	// ad-hoc traversal; any graph-shape expectation beyond "nodes precede
	// edges" is the caller's responsibility.
	RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]Row, error)

	// HealthCheck verifies connectivity to the backing graph store.
	HealthCheck(ctx context.Context) error

	// Close releases the driver and its connections.
	Close(ctx context.Context) error
}

// nativeProperties converts a typed property bag into the plain parameter
// map a graph driver expects. Values always travel as bound parameters.
func nativeProperties(props map[string]types.PropertyValue) map[string]interface{} {
	native := make(map[string]interface{}, len(props))
	for k, v := range props {
		native[k] = v.Native()
	}
	return native
}
