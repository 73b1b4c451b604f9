// Package store wraps the pgx connection pools backing the three databases
// named in spec §6's env surface (counter, plugin queue, graph) and the
// schema each owns: idempotent provisioning of tables shared by all tenants
// and keyed by tenant_id, the seven property tables, node/edge indexes, and
// session bookkeeping (spec §3).
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgxpool.Pool for one of the three logical databases.
type Pool struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	name   string
}

// Connect opens a pool against dsn, failing fast if the database is
// unreachable, mirroring the teacher's postgres client bootstrap.
func Connect(ctx context.Context, name, dsn string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create %s pool: %w", name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: failed to connect to %s: %w", name, err)
	}

	logger := slog.Default().With("component", "store", "db", name)
	logger.Info("connected to postgres", "db", name)

	return &Pool{pool: pool, logger: logger, name: name}, nil
}

func (p *Pool) Raw() *pgxpool.Pool { return p.pool }

func (p *Pool) Close() {
	p.pool.Close()
	p.logger.Info("pool closed", "db", p.name)
}

func (p *Pool) HealthCheck(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: %s health check failed: %w", p.name, err)
	}
	return nil
}
