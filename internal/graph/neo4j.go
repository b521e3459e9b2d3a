package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// Ensure *Neo4jStore implements Store at compile time.
var _ Store = (*Neo4jStore)(nil)

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore implements the graph overlay on Neo4j. Each element of a batch
// is written in its own transaction, so earlier successes stay committed
// when a later element fails.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: create driver: %v", ErrUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: verify connectivity: %v", ErrUnavailable, err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

// HealthCheck verifies connectivity to Neo4j.
func (s *Neo4jStore) HealthCheck(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the driver and its connections.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// UpsertEntitiesAndRelationships writes one extraction batch. Entities are
// merged by (label, key); relationships are created only when both endpoints
// resolve. Labels and relationship types cannot be bound as parameters, so
// they are validated against the identifier pattern before interpolation;
// every property value travels as a bound parameter.
func (s *Neo4jStore) UpsertEntitiesAndRelationships(ctx context.Context, factID string, entities []types.EntityInput, relationships []types.RelationshipInput) (*Report, error) {
	if factID == "" {
		return nil, fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}

	report := &Report{
		EntitiesCreated:   []string{},
		RelationshipsMade: []string{},
	}

	// Entities before relationships, so edges created later in the batch
	// can resolve their endpoints.
	for _, entity := range entities {
		if entity.Key == "" {
			report.FailedEntities = append(report.FailedEntities, ElementFailure{
				Key: entity.Key, Reason: "entity key is required",
			})
			continue
		}
		if !ValidIdentifier(entity.Type) {
			report.FailedEntities = append(report.FailedEntities, ElementFailure{
				Key: entity.Key, Reason: fmt.Sprintf("invalid label %q", entity.Type),
			})
			continue
		}

		if err := s.mergeEntity(ctx, factID, entity); err != nil {
			report.FailedEntities = append(report.FailedEntities, ElementFailure{
				Key: entity.Key, Reason: err.Error(),
			})
			continue
		}
		report.EntitiesCreated = append(report.EntitiesCreated, entity.Key)
	}

	for _, rel := range relationships {
		edgeKey := rel.FromKey + "->" + rel.ToKey
		if rel.FromKey == "" || rel.ToKey == "" {
			report.FailedRelationships = append(report.FailedRelationships, ElementFailure{
				Key: edgeKey, Reason: "both endpoint keys are required",
			})
			continue
		}
		if !ValidIdentifier(rel.Type) {
			report.FailedRelationships = append(report.FailedRelationships, ElementFailure{
				Key: edgeKey, Reason: fmt.Sprintf("invalid relationship type %q", rel.Type),
			})
			continue
		}

		created, err := s.createRelationship(ctx, factID, rel)
		if err != nil {
			report.FailedRelationships = append(report.FailedRelationships, ElementFailure{
				Key: edgeKey, Reason: err.Error(),
			})
			continue
		}
		if !created {
			report.FailedRelationships = append(report.FailedRelationships, ElementFailure{
				Key: edgeKey, Reason: "endpoint node not found",
			})
			continue
		}
		report.RelationshipsMade = append(report.RelationshipsMade, edgeKey)
	}

	if report.Partial() {
		return report, &PartialWriteError{FactID: factID, Report: *report}
	}
	return report, nil
}

// mergeEntity upserts one node by (label, key) and stamps fact provenance.
func (s *Neo4jStore) mergeEntity(ctx context.Context, factID string, entity types.EntityInput) error {
	query := fmt.Sprintf(
		"MERGE (n:%s {key: $key}) SET n += $props, n.fact_id = $fact_id",
		entity.Type,
	)
	params := map[string]interface{}{
		"key":     entity.Key,
		"props":   nativeProperties(entity.Properties),
		"fact_id": factID,
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return nil, result.Err()
	})
	return err
}

// createRelationship creates one typed edge between existing nodes. Returns
// false when either endpoint does not resolve.
func (s *Neo4jStore) createRelationship(ctx context.Context, factID string, rel types.RelationshipInput) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (a {key: $from_key})
		MATCH (b {key: $to_key})
		CREATE (a)-[r:%s]->(b)
		SET r += $props, r.fact_id = $fact_id
		RETURN count(r) AS created
	`, rel.Type)
	params := map[string]interface{}{
		"from_key": rel.FromKey,
		"to_key":   rel.ToKey,
		"props":    nativeProperties(rel.Properties),
		"fact_id":  factID,
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return false, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return false, err
		}
		// An aggregate-only RETURN always yields exactly one row, even when
		// a MATCH finds nothing, so the row count says nothing. The count
		// value itself is zero when an endpoint did not resolve.
		return relationshipCreated(records)
	})
	if err != nil {
		return false, err
	}
	return created.(bool), nil
}

// relationshipCreated reads the created-count row returned by the edge CREATE
// query. A count of zero means a MATCH missed and no edge was written.
func relationshipCreated(records []*neo4j.Record) (bool, error) {
	if len(records) == 0 {
		return false, fmt.Errorf("create returned no result row")
	}
	val, ok := records[0].Get("created")
	if !ok {
		return false, fmt.Errorf("create result missing created count")
	}
	n, ok := val.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected created count type %T", val)
	}
	return n > 0, nil
}

// RunQuery executes an arbitrary read query with bound parameters.
func (s *Neo4jStore) RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]Row, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrInvalidInput)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Row, len(records))
		for i, record := range records {
			out[i] = Row{Keys: record.Keys, Values: record.Values}
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: run query: %v", ErrUnavailable, err)
	}
	return rows.([]Row), nil
}
