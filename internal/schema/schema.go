// Package schema implements Component D, the Graph Schema Manager (spec
// §4.D): per-(tenant, node_type, schema_version) lookup of edge reverse
// names and cardinality, consulted by the mutation service (E) whenever it
// needs to write the reverse half of a declared edge.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// Cardinality constrains how many destinations an edge name may point to
// from a single source node.
type Cardinality string

const (
	CardinalityToOne  Cardinality = "to_one"
	CardinalityToMany Cardinality = "to_many"
)

// EdgeSchema describes one declared edge within a node type's schema
// version: its forward name, the reverse name the mutation service must
// also write, and cardinality.
type EdgeSchema struct {
	TenantID        string
	NodeType        string
	SchemaVersion   int
	EdgeName        string
	ReverseEdgeName string
	Cardinality     Cardinality
}

// Manager is the Component D contract.
type Manager interface {
	// GetEdgeSchema looks up the reverse edge name and cardinality for a
	// forward edge declared on nodeType at schemaVersion. Returns
	// ClassPersistent if the edge isn't declared — the mutation service
	// treats an undeclared edge as a partial failure on that edge, not the
	// whole graph.
	GetEdgeSchema(ctx context.Context, tenantID, nodeType string, schemaVersion int, edgeName string) (EdgeSchema, error)
	// DeploySchema registers or replaces the full edge schema for a node
	// type at a schema version.
	DeploySchema(ctx context.Context, edges []EdgeSchema) error
}

// PostgresManager is the production Manager, backed by the edge_schemas
// table (store.EnsureSchemaManagerSchema).
type PostgresManager struct {
	pool *pgxpool.Pool
}

func NewPostgresManager(pool *pgxpool.Pool) *PostgresManager {
	return &PostgresManager{pool: pool}
}

func (m *PostgresManager) GetEdgeSchema(ctx context.Context, tenantID, nodeType string, schemaVersion int, edgeName string) (EdgeSchema, error) {
	var es EdgeSchema
	es.TenantID, es.NodeType, es.SchemaVersion, es.EdgeName = tenantID, nodeType, schemaVersion, edgeName

	var reverse, cardinality string
	err := m.pool.QueryRow(ctx, `
		SELECT reverse_edge_name, cardinality
		FROM edge_schemas
		WHERE tenant_id = $1 AND node_type = $2 AND schema_version = $3 AND edge_name = $4
	`, tenantID, nodeType, schemaVersion, edgeName).Scan(&reverse, &cardinality)
	if err != nil {
		if err == pgx.ErrNoRows {
			return EdgeSchema{}, errors.Persistentf(
				"schema: no edge %q declared for %s/%s@v%d", edgeName, tenantID, nodeType, schemaVersion)
		}
		return EdgeSchema{}, errors.WrapTransient(err, "schema: querying edge schema")
	}
	es.ReverseEdgeName = reverse
	es.Cardinality = Cardinality(cardinality)
	return es, nil
}

func (m *PostgresManager) DeploySchema(ctx context.Context, edges []EdgeSchema) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return errors.WrapTransient(err, "schema: beginning deploy transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	for _, e := range edges {
		_, err := tx.Exec(ctx, `
			INSERT INTO edge_schemas (tenant_id, node_type, schema_version, edge_name, reverse_edge_name, cardinality)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tenant_id, node_type, schema_version, edge_name)
			DO UPDATE SET reverse_edge_name = EXCLUDED.reverse_edge_name, cardinality = EXCLUDED.cardinality
		`, e.TenantID, e.NodeType, e.SchemaVersion, e.EdgeName, e.ReverseEdgeName, e.Cardinality)
		if err != nil {
			return errors.WrapTransient(err, fmt.Sprintf("schema: deploying edge %q", e.EdgeName))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.WrapTransient(err, "schema: committing deploy transaction")
	}
	return nil
}
