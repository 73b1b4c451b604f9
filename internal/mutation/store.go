package mutation

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// PostgresNodeStore implements NodeStore against node_type and the seven
// property tables (store.EnsureGraphSchema).
type PostgresNodeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNodeStore(pool *pgxpool.Pool) *PostgresNodeStore {
	return &PostgresNodeStore{pool: pool}
}

func (s *PostgresNodeStore) UpsertNodeType(ctx context.Context, tenantID string, u uid.Uid, nodeType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO node_type (tenant_id, uid, node_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, uid) DO NOTHING
	`, tenantID, uint64(u), nodeType)
	if err != nil {
		return errors.WrapTransient(err, "mutation: upserting node type")
	}
	return nil
}

// UpsertImmutable writes the property only if no row exists yet: the first
// writer's value is permanent, matching the ImmutableString/I64/U64 merge
// rule at the storage layer instead of requiring a read before write.
func (s *PostgresNodeStore) UpsertImmutable(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	query := `INSERT INTO ` + table + ` (tenant_id, uid, property_name, str_value, int_value, uint_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, uid, property_name) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, tenantID, uint64(u), string(name), nullString(value), nullInt(value), nullUint(value))
	if err != nil {
		return errors.WrapTransient(err, "mutation: upserting immutable property")
	}
	return nil
}

// UpsertMax writes the property, keeping the larger of the stored and new
// value — the MAX rule is pushed into the SQL so concurrent writers never
// race on a read-modify-write.
func (s *PostgresNodeStore) UpsertMax(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	return s.upsertExtremum(ctx, table, tenantID, u, name, value, "GREATEST")
}

// UpsertMin writes the property, keeping the smaller of the stored and new
// value.
func (s *PostgresNodeStore) UpsertMin(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	return s.upsertExtremum(ctx, table, tenantID, u, name, value, "LEAST")
}

func (s *PostgresNodeStore) upsertExtremum(ctx context.Context, table, tenantID string, u uid.Uid, name graphdesc.PropertyName, value graphdesc.NodeProperty, fn string) error {
	col := "int_value"
	if value.Tag == graphdesc.IncrementOnlyU64 || value.Tag == graphdesc.DecrementOnlyU64 {
		col = "uint_value"
	}
	query := `INSERT INTO ` + table + ` (tenant_id, uid, property_name, ` + col + `)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, uid, property_name)
		DO UPDATE SET ` + col + ` = ` + fn + `(` + table + `.` + col + `, EXCLUDED.` + col + `)`
	arg := nullInt(value)
	if col == "uint_value" {
		arg = nullUint(value)
	}
	_, err := s.pool.Exec(ctx, query, tenantID, uint64(u), string(name), arg)
	if err != nil {
		return errors.WrapTransient(err, "mutation: upserting extremum property")
	}
	return nil
}

func nullString(p graphdesc.NodeProperty) interface{} {
	if p.Tag == graphdesc.ImmutableString {
		return p.Str
	}
	return nil
}

func nullInt(p graphdesc.NodeProperty) interface{} {
	switch p.Tag {
	case graphdesc.ImmutableI64, graphdesc.IncrementOnlyI64, graphdesc.DecrementOnlyI64:
		return p.Int
	default:
		return nil
	}
}

func nullUint(p graphdesc.NodeProperty) interface{} {
	switch p.Tag {
	case graphdesc.ImmutableU64, graphdesc.IncrementOnlyU64, graphdesc.DecrementOnlyU64:
		return p.Uint
	default:
		return nil
	}
}

// PostgresEdgeStore implements EdgeStore against the edges table.
type PostgresEdgeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEdgeStore(pool *pgxpool.Pool) *PostgresEdgeStore {
	return &PostgresEdgeStore{pool: pool}
}

func (s *PostgresEdgeStore) UpsertEdge(ctx context.Context, tenantID string, from uid.Uid, edgeName string, to uid.Uid) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO edges (tenant_id, source_uid, edge_name, dest_uid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, source_uid, edge_name, dest_uid) DO NOTHING
	`, tenantID, uint64(from), edgeName, uint64(to))
	if err != nil {
		return errors.WrapTransient(err, "mutation: upserting edge")
	}
	return nil
}
