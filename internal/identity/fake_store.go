package identity

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/uid"
)

type sessionKey struct {
	tenantID  string
	pseudoKey string
}

// FakeSessionStore is an in-memory SessionStore for unit tests that need to
// drive the resolution algorithm without a database.
type FakeSessionStore struct {
	mu       sync.Mutex
	sessions map[sessionKey][]Session
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{sessions: make(map[sessionKey][]Session)}
}

func (f *FakeSessionStore) FindCandidate(_ context.Context, tenantID, pseudoKey string, action Action, timestamp uint64) (Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.sessions[sessionKey{tenantID, pseudoKey}]
	candidate, ok := selectCandidate(rows, action, timestamp)
	return candidate, ok, nil
}

func (f *FakeSessionStore) CreateSession(_ context.Context, sess Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := sessionKey{sess.TenantID, sess.PseudoKey}
	for _, r := range f.sessions[key] {
		if r.CreateTime == sess.CreateTime {
			return errors.Transientf("identity: session already exists at create_time %d", sess.CreateTime)
		}
	}
	sess.Version = 0
	f.sessions[key] = append(f.sessions[key], sess)
	return nil
}

func (f *FakeSessionStore) CompareAndSwap(_ context.Context, sess Session, expectedVersion uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := sessionKey{sess.TenantID, sess.PseudoKey}
	rows := f.sessions[key]
	for i, r := range rows {
		if r.Uid == sess.Uid {
			if r.Version != expectedVersion {
				return false, nil
			}
			sess.Version = expectedVersion + 1
			rows[i] = sess
			return true, nil
		}
	}
	return false, errors.Persistentf("identity: no session with uid %s to update", sess.Uid)
}

// FakeStaticStore is an in-memory StaticStore for unit tests.
type FakeStaticStore struct {
	mu   sync.Mutex
	keys map[string]uid.Uid
}

func NewFakeStaticStore() *FakeStaticStore {
	return &FakeStaticStore{keys: make(map[string]uid.Uid)}
}

func (f *FakeStaticStore) ResolveOrCreate(ctx context.Context, tenantID string, canonicalKey [16]byte, allocate func(ctx context.Context) (uid.Uid, error)) (uid.Uid, error) {
	f.mu.Lock()
	key := tenantID + "|" + string(canonicalKey[:])
	if u, ok := f.keys[key]; ok {
		f.mu.Unlock()
		return u, nil
	}
	f.mu.Unlock()

	fresh, err := allocate(ctx)
	if err != nil {
		return uid.Nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.keys[key]; ok {
		return u, nil
	}
	f.keys[key] = fresh
	return fresh, nil
}
