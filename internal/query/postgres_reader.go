package query

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// PostgresReader implements GraphReader against the same tables Component E
// writes (store.EnsureGraphSchema): node_type, the seven property tables,
// and edges.
type PostgresReader struct {
	pool *pgxpool.Pool
}

func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

func (r *PostgresReader) NodeType(ctx context.Context, tenantID string, u uid.Uid) (string, bool, error) {
	var nt string
	err := r.pool.QueryRow(ctx, `SELECT node_type FROM node_type WHERE tenant_id = $1 AND uid = $2`, tenantID, uint64(u)).Scan(&nt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, errors.WrapTransient(err, "query: looking up node type")
	}
	return nt, true, nil
}

func (r *PostgresReader) Properties(ctx context.Context, tenantID string, u uid.Uid) (map[graphdesc.PropertyName]graphdesc.NodeProperty, error) {
	out := make(map[graphdesc.PropertyName]graphdesc.NodeProperty)
	for _, tagName := range []string{"ImmutableString", "ImmutableI64", "ImmutableU64", "IncrementOnlyI64", "IncrementOnlyU64", "DecrementOnlyI64", "DecrementOnlyU64"} {
		table, _ := store.PropertyTableFor(tagName)
		rows, err := r.pool.Query(ctx, `SELECT property_name, str_value, int_value, uint_value FROM `+table+` WHERE tenant_id = $1 AND uid = $2`, tenantID, uint64(u))
		if err != nil {
			return nil, errors.WrapTransient(err, "query: reading properties")
		}
		tag := propertyTagFromName(tagName)
		for rows.Next() {
			var name string
			var str *string
			var intVal, uintVal *int64
			if err := rows.Scan(&name, &str, &intVal, &uintVal); err != nil {
				rows.Close()
				return nil, errors.WrapTransient(err, "query: scanning property row")
			}
			prop := graphdesc.NodeProperty{Tag: tag}
			if str != nil {
				prop.Str = *str
			}
			if intVal != nil {
				prop.Int = *intVal
			}
			if uintVal != nil {
				prop.Uint = uint64(*uintVal)
			}
			out[graphdesc.PropertyName(name)] = prop
		}
		rows.Close()
	}
	return out, nil
}

func propertyTagFromName(name string) graphdesc.PropertyTag {
	switch name {
	case "ImmutableString":
		return graphdesc.ImmutableString
	case "ImmutableI64":
		return graphdesc.ImmutableI64
	case "ImmutableU64":
		return graphdesc.ImmutableU64
	case "IncrementOnlyI64":
		return graphdesc.IncrementOnlyI64
	case "IncrementOnlyU64":
		return graphdesc.IncrementOnlyU64
	case "DecrementOnlyI64":
		return graphdesc.DecrementOnlyI64
	default:
		return graphdesc.DecrementOnlyU64
	}
}

func (r *PostgresReader) EdgesFrom(ctx context.Context, tenantID string, u uid.Uid, edgeName string) ([]uid.Uid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dest_uid FROM edges WHERE tenant_id = $1 AND source_uid = $2 AND edge_name = $3
	`, tenantID, uint64(u), edgeName)
	if err != nil {
		return nil, errors.WrapTransient(err, "query: reading edges")
	}
	defer rows.Close()

	var out []uid.Uid
	for rows.Next() {
		var dest uint64
		if err := rows.Scan(&dest); err != nil {
			return nil, errors.WrapTransient(err, "query: scanning edge row")
		}
		out = append(out, uid.Uid(dest))
	}
	return out, nil
}

func (r *PostgresReader) CandidateRoots(ctx context.Context, tenantID, nodeType string) ([]uid.Uid, error) {
	rows, err := r.pool.Query(ctx, `SELECT uid FROM node_type WHERE tenant_id = $1 AND node_type = $2`, tenantID, nodeType)
	if err != nil {
		return nil, errors.WrapTransient(err, "query: reading candidate roots")
	}
	defer rows.Close()

	var out []uid.Uid
	for rows.Next() {
		var u uint64
		if err := rows.Scan(&u); err != nil {
			return nil, errors.WrapTransient(err, "query: scanning candidate root row")
		}
		out = append(out, uid.Uid(u))
	}
	return out, nil
}
