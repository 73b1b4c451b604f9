package store

import (
	"context"
	"fmt"
)

// propertyTables lists the seven per-merge-rule tables of spec §4.E: node
// properties are routed to exactly one of these based on PropertyTag, so
// each table's UPDATE clause encodes that table's merge rule directly in SQL
// rather than requiring a read-modify-write from Go.
var propertyTables = []string{
	"node_property_immutable_string",
	"node_property_immutable_i64",
	"node_property_immutable_u64",
	"node_property_max_i64",
	"node_property_max_u64",
	"node_property_min_i64",
	"node_property_min_u64",
}

// EnsureGraphSchema creates the graph database's tables if they do not
// already exist. Called once at service startup, not per request — this
// mirrors the teacher's fail-fast bootstrap rather than a migration runner,
// since the corpus carries no migration tool.
func EnsureGraphSchema(ctx context.Context, pool *Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS node_type (
			tenant_id TEXT NOT NULL,
			uid BIGINT NOT NULL,
			node_type TEXT NOT NULL,
			PRIMARY KEY (tenant_id, uid)
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			tenant_id TEXT NOT NULL,
			source_uid BIGINT NOT NULL,
			edge_name TEXT NOT NULL,
			dest_uid BIGINT NOT NULL,
			PRIMARY KEY (tenant_id, source_uid, edge_name, dest_uid)
		)`,
		`CREATE INDEX IF NOT EXISTS edges_dest_idx ON edges (tenant_id, dest_uid, edge_name)`,
		`CREATE TABLE IF NOT EXISTS canonical_map (
			tenant_id TEXT NOT NULL,
			canonical_key BYTEA NOT NULL,
			uid BIGINT NOT NULL,
			PRIMARY KEY (tenant_id, canonical_key)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			tenant_id TEXT NOT NULL,
			pseudo_key BYTEA NOT NULL,
			uid BIGINT NOT NULL,
			created_time BIGINT NOT NULL,
			last_seen_time BIGINT NOT NULL,
			terminated_time BIGINT,
			is_create_canon BOOLEAN NOT NULL DEFAULT FALSE,
			is_end_canon BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, pseudo_key, created_time)
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_uid_idx ON sessions (tenant_id, uid)`,
	}

	for _, name := range propertyTables {
		statements = append(statements, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tenant_id TEXT NOT NULL,
			uid BIGINT NOT NULL,
			property_name TEXT NOT NULL,
			str_value TEXT,
			int_value BIGINT,
			uint_value BIGINT,
			PRIMARY KEY (tenant_id, uid, property_name)
		)`, name))
	}

	for _, stmt := range statements {
		if _, err := pool.Raw().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: provisioning graph schema: %w", err)
		}
	}
	return nil
}

// EnsureCounterSchema creates the uid allocator's counters table.
func EnsureCounterSchema(ctx context.Context, pool *Pool) error {
	_, err := pool.Raw().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS counters (
			tenant_id TEXT PRIMARY KEY,
			counter BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("store: provisioning counter schema: %w", err)
	}
	return nil
}

// EnsureSchemaManagerSchema creates the per-(tenant, node_type,
// schema_version) edge schema table owned by Component D.
func EnsureSchemaManagerSchema(ctx context.Context, pool *Pool) error {
	_, err := pool.Raw().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS edge_schemas (
			tenant_id TEXT NOT NULL,
			node_type TEXT NOT NULL,
			schema_version INT NOT NULL,
			edge_name TEXT NOT NULL,
			reverse_edge_name TEXT NOT NULL,
			cardinality TEXT NOT NULL,
			PRIMARY KEY (tenant_id, node_type, schema_version, edge_name)
		)
	`)
	if err != nil {
		return fmt.Errorf("store: provisioning schema-manager schema: %w", err)
	}
	return nil
}

// EnsurePluginQueueSchema creates the durable per-(tenant, plugin) work queue
// table owned by Component G, matching the row shape of spec §4.G:
// (execution_key, plugin_id, tenant_id, trace_id, event_source_id,
// pipeline_message, status, creation_time, last_updated, visible_after,
// try_count, execution_result).
func EnsurePluginQueueSchema(ctx context.Context, pool *Pool) error {
	_, err := pool.Raw().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS plugin_work_queue (
			execution_key TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			plugin_id TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			event_source_id TEXT NOT NULL,
			pipeline_message BYTEA NOT NULL,
			status TEXT NOT NULL DEFAULT 'Enqueued',
			creation_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			visible_after TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			try_count INT NOT NULL DEFAULT 0,
			execution_result BYTEA
		)
	`)
	if err != nil {
		return fmt.Errorf("store: provisioning plugin queue schema: %w", err)
	}
	_, err = pool.Raw().Exec(ctx, `
		CREATE INDEX IF NOT EXISTS plugin_work_queue_poll_idx
		ON plugin_work_queue (tenant_id, plugin_id, visible_after, creation_time, execution_key)
		WHERE status = 'Enqueued'
	`)
	if err != nil {
		return fmt.Errorf("store: provisioning plugin queue index: %w", err)
	}
	return nil
}

// PropertyTableFor returns the table name the mutation service should write
// a property with the given tag name into. tag must be one of the seven
// graphdesc.PropertyTag string forms.
func PropertyTableFor(tagName string) (string, bool) {
	switch tagName {
	case "ImmutableString":
		return "node_property_immutable_string", true
	case "ImmutableI64":
		return "node_property_immutable_i64", true
	case "ImmutableU64":
		return "node_property_immutable_u64", true
	case "IncrementOnlyI64":
		return "node_property_max_i64", true
	case "IncrementOnlyU64":
		return "node_property_max_u64", true
	case "DecrementOnlyI64":
		return "node_property_min_i64", true
	case "DecrementOnlyU64":
		return "node_property_min_u64", true
	default:
		return "", false
	}
}
