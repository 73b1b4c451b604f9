// Package uidalloc implements Component C, the Uid Allocator (spec §4.C):
// per-tenant batched ranges of permanent node identifiers, handed out via a
// single atomic counter row so concurrent mutation-service replicas never
// collide.
package uidalloc

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// DefaultAllocationSize is used when a caller requests count == 0, matching
// the "0 is a sentinel for server decides" convention.
const DefaultAllocationSize = 1000

// MaxAllocationSize bounds a single request to prevent one tenant from
// exhausting the 64-bit space in a pathological burst.
const MaxAllocationSize uint64 = 100000

// Range is a half-open interval [Start, Start+Count) of uids reserved for
// exclusive use by the caller.
type Range struct {
	Start uid.Uid
	Count uint64
}

// Contains reports whether u falls within the range.
func (r Range) Contains(u uid.Uid) bool {
	return u >= r.Start && uint64(u-r.Start) < r.Count
}

// Next returns the uid at offset i within the range.
func (r Range) Next(i uint64) uid.Uid {
	return uid.Uid(uint64(r.Start) + i)
}

// Allocator is the server-side Component C contract: one atomic UPDATE per
// call, serialized by the counters row's row lock.
type Allocator interface {
	// Allocate reserves count uids for tenantID, returning the range. count
	// == 0 is resolved to DefaultAllocationSize.
	Allocate(ctx context.Context, tenantID string, count uint64) (Range, error)
	// CreateTenantKeyspace provisions the counters row for a new tenant,
	// starting at uid 1 (0 is the reserved nil sentinel).
	CreateTenantKeyspace(ctx context.Context, tenantID string) error
}

// PostgresAllocator implements Allocator against the counters table in the
// counter database (spec §6 env: GRAPL_COUNTER_DB_*).
type PostgresAllocator struct {
	pool *pgxpool.Pool
}

func NewPostgresAllocator(pool *pgxpool.Pool) *PostgresAllocator {
	return &PostgresAllocator{pool: pool}
}

// CreateTenantKeyspace inserts the tenant's counter row starting at 1,
// idempotently (ON CONFLICT DO NOTHING) so repeated provisioning calls are
// harmless.
func (a *PostgresAllocator) CreateTenantKeyspace(ctx context.Context, tenantID string) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO counters (tenant_id, counter)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	if err != nil {
		return errors.WrapTransient(err, fmt.Sprintf("uidalloc: creating keyspace for tenant %s", tenantID))
	}
	return nil
}

// Allocate atomically advances the tenant's counter by count and returns the
// range that was reserved. Uses UPDATE ... RETURNING so the read-modify-write
// is a single round trip with no client-side CAS required.
func (a *PostgresAllocator) Allocate(ctx context.Context, tenantID string, count uint64) (Range, error) {
	if count == 0 {
		count = DefaultAllocationSize
	}
	if count > MaxAllocationSize {
		return Range{}, errors.Persistentf("uidalloc: requested count %d exceeds max %d", count, MaxAllocationSize)
	}

	var newCounter uint64
	err := a.pool.QueryRow(ctx, `
		UPDATE counters
		SET counter = counter + $2
		WHERE tenant_id = $1
		RETURNING counter
	`, tenantID, count).Scan(&newCounter)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Range{}, errors.Persistentf("uidalloc: unknown tenant %s (keyspace not created)", tenantID)
		}
		return Range{}, errors.WrapTransient(err, fmt.Sprintf("uidalloc: allocating %d uids for tenant %s", count, tenantID))
	}

	start := newCounter - count
	if start == 0 {
		// uid 0 is the reserved nil sentinel; the very first allocation for a
		// tenant starts the counter at 1, so this only fires if the tenant
		// row was seeded incorrectly outside CreateTenantKeyspace.
		return Range{}, errors.Fatalf("uidalloc: allocation for tenant %s would include reserved uid 0", tenantID)
	}

	return Range{Start: uid.Uid(start), Count: count}, nil
}
