// Package identity implements Component B, the Identifier: mapping a
// generator's ephemeral NodeKey to a stable, permanent uid.Uid via
// per-strategy resolution (spec §4.B). Static strategy nodes resolve by a
// content-addressed canonical_key; Session strategy nodes resolve through
// the two-tier create/update/terminate algorithm below.
package identity

import "context"

// RetryCache records pseudo_keys the resolver has recently resolved. It is
// advisory only (spec §4.B, Open Question (b)): the resolver calls Seen after
// each successful session resolution and never calls WasSeen, so the cache
// does not change which code path an observation takes.
type RetryCache interface {
	Seen(ctx context.Context, pseudoKey string) error
	WasSeen(ctx context.Context, pseudoKey string) (bool, error)
}

// LocalRetryCache backs RetryCache with an in-process TTL cache, appropriate
// when a single identifier process owns a tenant's session resolution.
type LocalRetryCache struct {
	inner interface {
		Seen(key string)
		WasSeen(key string) bool
	}
}

func NewLocalRetryCache(inner interface {
	Seen(key string)
	WasSeen(key string) bool
}) *LocalRetryCache {
	return &LocalRetryCache{inner: inner}
}

func (c *LocalRetryCache) Seen(_ context.Context, pseudoKey string) error {
	c.inner.Seen(pseudoKey)
	return nil
}

func (c *LocalRetryCache) WasSeen(_ context.Context, pseudoKey string) (bool, error) {
	return c.inner.WasSeen(pseudoKey), nil
}

// SharedRetryCache backs RetryCache with a shared store (e.g. Redis),
// appropriate when multiple identifier replicas resolve sessions for the
// same tenant concurrently and benefit from sharing retry history.
type SharedRetryCache struct {
	inner interface {
		Seen(ctx context.Context, key string) error
		WasSeen(ctx context.Context, key string) (bool, error)
	}
}

func NewSharedRetryCache(inner interface {
	Seen(ctx context.Context, key string) error
	WasSeen(ctx context.Context, key string) (bool, error)
}) *SharedRetryCache {
	return &SharedRetryCache{inner: inner}
}

func (c *SharedRetryCache) Seen(ctx context.Context, pseudoKey string) error {
	return c.inner.Seen(ctx, pseudoKey)
}

func (c *SharedRetryCache) WasSeen(ctx context.Context, pseudoKey string) (bool, error) {
	return c.inner.WasSeen(ctx, pseudoKey)
}

// NoopRetryCache never remembers anything; every observation takes the full
// tie-break path. Useful for tests that want to exercise that path
// deterministically.
type NoopRetryCache struct{}

func (NoopRetryCache) Seen(context.Context, string) error                { return nil }
func (NoopRetryCache) WasSeen(context.Context, string) (bool, error)     { return false, nil }
