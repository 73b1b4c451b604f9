package identity

import (
	"context"
	"math/rand"
	"time"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// nodeAction derives the Action a node observation represents from its
// declared properties. Session-strategy nodes carry a terminated timestamp
// field only once terminated; its presence (nonzero) selects Terminate.
// Everything else resolves as UpdateOrCreate unless the caller has
// independent knowledge this is a first sighting (see ResolveSessionNode's
// forceCreate parameter, set by generators that observed an OS-level create
// event, mirroring the original Action::Create/Existing/Terminated split).
func nodeAction(node *graphdesc.NodeDescription, strategy graphdesc.IdStrategy, forceCreate bool) Action {
	if strategy.TerminatedTsField != "" {
		if p, ok := node.Property(strategy.TerminatedTsField); ok && p.Uint != 0 {
			return ActionTerminate
		}
	}
	if forceCreate {
		return ActionCreate
	}
	return ActionUpdateOrCreate
}

// Resolver is the Component B contract: map a node_key's observation to a
// stable, permanent Uid.
type Resolver struct {
	tenantID string

	sessionStore SessionStore
	staticStore  StaticStore
	assets       AssetResolver
	retryCache   RetryCache

	allocate func(ctx context.Context) (uid.Uid, error)

	maxCASRetries int
	backoff       func(attempt int) time.Duration
}

// NewResolver wires the Component B dependencies. allocate must return a
// fresh uid on every call (typically uidalloc.BatchingAllocator.Next).
func NewResolver(
	tenantID string,
	sessionStore SessionStore,
	staticStore StaticStore,
	assets AssetResolver,
	retryCache RetryCache,
	allocate func(ctx context.Context) (uid.Uid, error),
	maxCASRetries int,
) *Resolver {
	if maxCASRetries <= 0 {
		maxCASRetries = 5
	}
	return &Resolver{
		tenantID:      tenantID,
		sessionStore:  sessionStore,
		staticStore:   staticStore,
		assets:        assets,
		retryCache:    retryCache,
		allocate:      allocate,
		maxCASRetries: maxCASRetries,
		backoff:       exponentialBackoff,
	}
}

func exponentialBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
	if d > time.Second {
		d = time.Second
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// Resolve maps a single node observation to its permanent uid, dispatching
// on IdStrategy.Kind.
func (r *Resolver) Resolve(ctx context.Context, node *graphdesc.NodeDescription) (uid.Uid, error) {
	switch node.IdStrategy.Kind {
	case graphdesc.StrategyStatic:
		return r.resolveStatic(ctx, node)
	case graphdesc.StrategySession:
		return r.resolveSession(ctx, node, false)
	default:
		return uid.Nil, errors.Persistentf("identity: unknown id strategy kind %d", node.IdStrategy.Kind)
	}
}

// ResolveSessionNode resolves a Session-strategy node, letting the caller
// assert forceCreate when it has out-of-band knowledge this is a fresh
// session (e.g. the generator observed an OS process-create event) rather
// than relying solely on field inspection.
func (r *Resolver) ResolveSessionNode(ctx context.Context, node *graphdesc.NodeDescription, forceCreate bool) (uid.Uid, error) {
	return r.resolveSession(ctx, node, forceCreate)
}

func (r *Resolver) resolveStatic(ctx context.Context, node *graphdesc.NodeDescription) (uid.Uid, error) {
	strategy := node.IdStrategy
	fields := node.FieldValues(strategy.KeyFields)

	if strategy.PrimaryKeyRequiresAssetID {
		assetUid, err := r.assets.ResolveAsset(ctx, r.tenantID, node)
		if err != nil {
			return uid.Nil, err
		}
		fields = append(fields, assetUid.String())
	}

	key, err := graphdesc.PseudoKey(r.tenantID, node.NodeType, fields)
	if err != nil {
		return uid.Nil, errors.WrapPersistent(err, "identity: hashing canonical key")
	}
	return r.staticStore.ResolveOrCreate(ctx, r.tenantID, key, r.allocate)
}

func (r *Resolver) resolveSession(ctx context.Context, node *graphdesc.NodeDescription, forceCreate bool) (uid.Uid, error) {
	strategy := node.IdStrategy
	fields := SessionKeyFieldValues(node)

	if strategy.PrimaryKeyRequiresAssetID {
		assetUid, err := r.assets.ResolveAsset(ctx, r.tenantID, node)
		if err != nil {
			return uid.Nil, err
		}
		fields = append(fields, assetUid.String())
	}

	keyBytes, err := graphdesc.PseudoKey(r.tenantID, node.NodeType, fields)
	if err != nil {
		return uid.Nil, errors.WrapPersistent(err, "identity: hashing pseudo key")
	}
	pseudoKey := string(keyBytes[:])

	action := nodeAction(node, strategy, forceCreate)
	timestamp := observationTimestamp(node, strategy)

	for attempt := 0; attempt < r.maxCASRetries; attempt++ {
		u, retry, err := r.tryResolveSession(ctx, pseudoKey, action, timestamp)
		if err == nil {
			if r.retryCache != nil {
				_ = r.retryCache.Seen(ctx, pseudoKey)
			}
			return u, nil
		}
		if !retry {
			return uid.Nil, err
		}
		select {
		case <-ctx.Done():
			return uid.Nil, errors.WrapTransient(ctx.Err(), "identity: session resolution cancelled")
		case <-time.After(r.backoff(attempt)):
		}
	}
	return uid.Nil, errors.Transientf("identity: exhausted %d CAS retries resolving session %x", r.maxCASRetries, keyBytes)
}

// tryResolveSession runs one attempt of the two-tier resolution: find (or
// create) the candidate session, fold the observation in using the
// tie-break rules in session.go, and CAS the update. retry is true when the
// caller should back off and try again (a lost CAS race or a concurrent
// create), false when the error is final.
func (r *Resolver) tryResolveSession(ctx context.Context, pseudoKey string, action Action, timestamp uint64) (uid.Uid, bool, error) {
	candidate, found, err := r.sessionStore.FindCandidate(ctx, r.tenantID, pseudoKey, action, timestamp)
	if err != nil {
		return uid.Nil, true, err
	}

	if !found {
		fresh, err := r.allocate(ctx)
		if err != nil {
			return uid.Nil, false, err
		}
		sess := Session{
			Uid:        uint64(fresh),
			TenantID:   r.tenantID,
			PseudoKey:  pseudoKey,
			CreateTime: timestamp,
			EndTime:    timestamp,
		}
		applyObservation(&sess, action, timestamp)
		if err := r.sessionStore.CreateSession(ctx, sess); err != nil {
			if errors.IsRetryable(err) {
				return uid.Nil, true, err
			}
			return uid.Nil, false, err
		}
		return uid.Uid(sess.Uid), false, nil
	}

	updated := candidate
	changed := applyObservation(&updated, action, timestamp)
	if !changed {
		return uid.Uid(candidate.Uid), false, nil
	}

	applied, err := r.sessionStore.CompareAndSwap(ctx, updated, candidate.Version)
	if err != nil {
		return uid.Nil, false, err
	}
	if !applied {
		return uid.Nil, true, errors.Transientf("identity: lost CAS race updating session uid %d", candidate.Uid)
	}
	return uid.Uid(candidate.Uid), false, nil
}

// observationTimestamp picks the timestamp field relevant to action: the
// terminated timestamp for a Terminate observation, otherwise last_seen.
func observationTimestamp(node *graphdesc.NodeDescription, strategy graphdesc.IdStrategy) uint64 {
	if strategy.TerminatedTsField != "" {
		if p, ok := node.Property(strategy.TerminatedTsField); ok && p.Uint != 0 {
			return p.Uint
		}
	}
	if strategy.LastSeenTsField != "" {
		if p, ok := node.Property(strategy.LastSeenTsField); ok {
			return p.Uint
		}
	}
	if strategy.CreatedTsField != "" {
		if p, ok := node.Property(strategy.CreatedTsField); ok {
			return p.Uint
		}
	}
	return 0
}
