package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// SessionStore is the persistence seam Component B uses to resolve
// Session-strategy nodes. Every mutating method is a single CAS-guarded
// statement so concurrent identifier replicas racing on the same pseudo_key
// never silently clobber each other (spec §4.B).
type SessionStore interface {
	// FindCandidate returns the session row this (action, timestamp)
	// observation resolves against, per spec §4.B's two-tier search (active
	// session at timestamp, else an unclaimed future session for adoption,
	// with ties broken by the smaller uid). ok is false if no row qualifies
	// and the caller must create a new session.
	FindCandidate(ctx context.Context, tenantID, pseudoKey string, action Action, timestamp uint64) (Session, bool, error)
	// CreateSession inserts a brand-new session row with the given uid,
	// already allocated by the caller. Returns ClassTransient if a
	// concurrent writer won the insert race (unique violation on
	// tenant/pseudo_key/create_time).
	CreateSession(ctx context.Context, s Session) error
	// CompareAndSwap writes s if its Version still matches what's stored;
	// returns applied=false (not an error) on a lost race so the caller can
	// reread and retry.
	CompareAndSwap(ctx context.Context, s Session, expectedVersion uint64) (applied bool, err error)
}

// StaticStore resolves Static-strategy nodes: a canonical_key maps to
// exactly one uid for the lifetime of the tenant (spec §4.B).
type StaticStore interface {
	// ResolveOrCreate returns the uid already mapped to canonicalKey, or
	// allocates a fresh one via allocate and races to claim canonicalKey,
	// returning whichever uid won the unique-constraint race.
	ResolveOrCreate(ctx context.Context, tenantID string, canonicalKey [16]byte, allocate func(ctx context.Context) (uid.Uid, error)) (uid.Uid, error)
}

// PostgresSessionStore implements SessionStore against the sessions table
// (store.EnsureGraphSchema).
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) FindCandidate(ctx context.Context, tenantID, pseudoKey string, action Action, timestamp uint64) (Session, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uid, created_time, last_seen_time, terminated_time, is_create_canon, is_end_canon, version
		FROM sessions
		WHERE tenant_id = $1 AND pseudo_key = $2
	`, tenantID, []byte(pseudoKey))
	if err != nil {
		return Session{}, false, errors.WrapTransient(err, "identity: finding session candidates")
	}
	defer rows.Close()

	var candidates []Session
	for rows.Next() {
		var sess Session
		var terminated *uint64
		if err := rows.Scan(&sess.Uid, &sess.CreateTime, &sess.EndTime, &terminated, &sess.IsCreateCanon, &sess.IsEndCanon, &sess.Version); err != nil {
			return Session{}, false, errors.WrapTransient(err, "identity: scanning session candidate")
		}
		sess.TenantID = tenantID
		sess.PseudoKey = pseudoKey
		candidates = append(candidates, sess)
	}
	if err := rows.Err(); err != nil {
		return Session{}, false, errors.WrapTransient(err, "identity: iterating session candidates")
	}

	candidate, ok := selectCandidate(candidates, action, timestamp)
	return candidate, ok, nil
}

func (s *PostgresSessionStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (tenant_id, pseudo_key, uid, created_time, last_seen_time, terminated_time, is_create_canon, is_end_canon, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
	`, sess.TenantID, []byte(sess.PseudoKey), sess.Uid, sess.CreateTime, sess.EndTime, nullableTerminated(sess), sess.IsCreateCanon, sess.IsEndCanon)
	if err != nil {
		return errors.WrapTransient(err, "identity: creating session")
	}
	return nil
}

func nullableTerminated(sess Session) interface{} {
	if sess.IsEndCanon {
		return sess.EndTime
	}
	return nil
}

func (s *PostgresSessionStore) CompareAndSwap(ctx context.Context, sess Session, expectedVersion uint64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET created_time = $1, last_seen_time = $2, terminated_time = $3, is_create_canon = $4, is_end_canon = $5, version = version + 1
		WHERE tenant_id = $6 AND pseudo_key = $7 AND uid = $8 AND version = $9
	`, sess.CreateTime, sess.EndTime, nullableTerminated(sess), sess.IsCreateCanon, sess.IsEndCanon,
		sess.TenantID, []byte(sess.PseudoKey), sess.Uid, expectedVersion)
	if err != nil {
		return false, errors.WrapTransient(err, "identity: compare-and-swap on session")
	}
	return tag.RowsAffected() == 1, nil
}

// PostgresStaticStore implements StaticStore against the canonical_map table.
type PostgresStaticStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStaticStore(pool *pgxpool.Pool) *PostgresStaticStore {
	return &PostgresStaticStore{pool: pool}
}

func (s *PostgresStaticStore) ResolveOrCreate(ctx context.Context, tenantID string, canonicalKey [16]byte, allocate func(ctx context.Context) (uid.Uid, error)) (uid.Uid, error) {
	var existing uint64
	err := s.pool.QueryRow(ctx, `
		SELECT uid FROM canonical_map WHERE tenant_id = $1 AND canonical_key = $2
	`, tenantID, canonicalKey[:]).Scan(&existing)
	if err == nil {
		return uid.Uid(existing), nil
	}
	if err != pgx.ErrNoRows {
		return uid.Nil, errors.WrapTransient(err, "identity: resolving canonical key")
	}

	fresh, err := allocate(ctx)
	if err != nil {
		return uid.Nil, err
	}

	var won uint64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO canonical_map (tenant_id, canonical_key, uid)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, canonical_key) DO UPDATE SET canonical_key = EXCLUDED.canonical_key
		RETURNING uid
	`, tenantID, canonicalKey[:], uint64(fresh)).Scan(&won)
	if err != nil {
		return uid.Nil, errors.WrapTransient(err, "identity: claiming canonical key")
	}
	return uid.Uid(won), nil
}
