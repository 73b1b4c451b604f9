package uidalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/uid"
)

func TestStaticAllocator_AllocateSequential(t *testing.T) {
	ctx := context.Background()
	a := NewStaticAllocator()
	require.NoError(t, a.CreateTenantKeyspace(ctx, "tenant-a"))

	r1, err := a.Allocate(ctx, "tenant-a", 10)
	require.NoError(t, err)
	assert.Equal(t, uid.Uid(1), r1.Start)
	assert.EqualValues(t, 10, r1.Count)

	r2, err := a.Allocate(ctx, "tenant-a", 5)
	require.NoError(t, err)
	assert.Equal(t, uid.Uid(11), r2.Start)
}

func TestStaticAllocator_UnknownTenant(t *testing.T) {
	a := NewStaticAllocator()
	_, err := a.Allocate(context.Background(), "ghost", 10)
	require.Error(t, err)
}

func TestRange_ContainsAndNext(t *testing.T) {
	r := Range{Start: uid.Uid(100), Count: 10}
	assert.True(t, r.Contains(uid.Uid(100)))
	assert.True(t, r.Contains(uid.Uid(109)))
	assert.False(t, r.Contains(uid.Uid(110)))
	assert.Equal(t, uid.Uid(105), r.Next(5))
}

func TestBatchingAllocator_RefillsOnExhaustion(t *testing.T) {
	ctx := context.Background()
	upstream := NewStaticAllocator()
	require.NoError(t, upstream.CreateTenantKeyspace(ctx, "tenant-a"))

	client := NewBatchingAllocator(upstream, "tenant-a", 3)

	seen := make(map[uid.Uid]bool)
	for i := 0; i < 10; i++ {
		u, err := client.Next(ctx)
		require.NoError(t, err)
		assert.False(t, seen[u], "uid %s issued twice", u)
		seen[u] = true
	}
	assert.Len(t, seen, 10)
}

func TestBatchingAllocator_NextNSatisfiesLargeRequest(t *testing.T) {
	ctx := context.Background()
	upstream := NewStaticAllocator()
	require.NoError(t, upstream.CreateTenantKeyspace(ctx, "tenant-a"))

	client := NewBatchingAllocator(upstream, "tenant-a", 2)
	uids, err := client.NextN(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, uids, 7)

	seen := make(map[uid.Uid]bool)
	for _, u := range uids {
		assert.False(t, seen[u])
		seen[u] = true
	}
}

func TestBatchingAllocator_Remaining(t *testing.T) {
	ctx := context.Background()
	upstream := NewStaticAllocator()
	require.NoError(t, upstream.CreateTenantKeyspace(ctx, "tenant-a"))

	client := NewBatchingAllocator(upstream, "tenant-a", 5)
	assert.EqualValues(t, 0, client.Remaining())

	_, err := client.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, client.Remaining())
}
