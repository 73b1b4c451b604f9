package uidalloc

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// BatchingAllocator is the client-side wrapper every other component (B, E)
// uses to get uids: it caches unused ids from its last Allocate call and
// only makes a round trip to the server when the cache is exhausted,
// amortizing allocator load across many single-uid requests (spec §4.C).
type BatchingAllocator struct {
	upstream       Allocator
	tenantID       string
	preallocation  uint64

	mu       sync.Mutex
	current  Range
	consumed uint64
}

// NewBatchingAllocator builds a per-tenant client cache. preallocation is
// the batch size requested on each refill (spec default: 1000).
func NewBatchingAllocator(upstream Allocator, tenantID string, preallocation uint64) *BatchingAllocator {
	if preallocation == 0 {
		preallocation = DefaultAllocationSize
	}
	return &BatchingAllocator{
		upstream:      upstream,
		tenantID:      tenantID,
		preallocation: preallocation,
	}
}

// Next returns a single fresh uid, refilling from upstream if the local
// range is exhausted.
func (c *BatchingAllocator) Next(ctx context.Context) (uid.Uid, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumed >= c.current.Count {
		r, err := c.upstream.Allocate(ctx, c.tenantID, c.preallocation)
		if err != nil {
			return uid.Nil, err
		}
		c.current = r
		c.consumed = 0
	}

	u := c.current.Next(c.consumed)
	c.consumed++
	return u, nil
}

// NextN returns n fresh uids in one call. If n exceeds what remains in the
// local range, it refills to exactly satisfy the request (requesting at
// least preallocation to avoid thrashing on large bursts).
func (c *BatchingAllocator) NextN(ctx context.Context, n uint64) ([]uid.Uid, error) {
	if n == 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]uid.Uid, 0, n)
	for uint64(len(out)) < n {
		if c.consumed >= c.current.Count {
			want := n - uint64(len(out))
			if want < c.preallocation {
				want = c.preallocation
			}
			r, err := c.upstream.Allocate(ctx, c.tenantID, want)
			if err != nil {
				return nil, err
			}
			c.current = r
			c.consumed = 0
		}
		for c.consumed < c.current.Count && uint64(len(out)) < n {
			out = append(out, c.current.Next(c.consumed))
			c.consumed++
		}
	}
	return out, nil
}

// Remaining reports how many uids are left in the locally cached range,
// useful for metrics and tests.
func (c *BatchingAllocator) Remaining() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed >= c.current.Count {
		return 0
	}
	return c.current.Count - c.consumed
}

// StaticAllocator is a test double handing out sequential uids from an
// in-memory counter, with no network dependency.
type StaticAllocator struct {
	mu       sync.Mutex
	counters map[string]uint64
	tenants  map[string]bool
}

func NewStaticAllocator() *StaticAllocator {
	return &StaticAllocator{
		counters: make(map[string]uint64),
		tenants:  make(map[string]bool),
	}
}

func (s *StaticAllocator) CreateTenantKeyspace(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tenants[tenantID] {
		s.tenants[tenantID] = true
		s.counters[tenantID] = 1
	}
	return nil
}

func (s *StaticAllocator) Allocate(_ context.Context, tenantID string, count uint64) (Range, error) {
	if count == 0 {
		count = DefaultAllocationSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tenants[tenantID] {
		return Range{}, errors.Persistentf("uidalloc: unknown tenant %s", tenantID)
	}
	start := s.counters[tenantID]
	s.counters[tenantID] = start + count
	return Range{Start: uid.Uid(start), Count: count}, nil
}
