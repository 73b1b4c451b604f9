package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeQueue_PutThenGetClaimsMessage(t *testing.T) {
	q := NewFakeQueue()
	ctx := context.Background()

	key, err := q.Put(ctx, "tenant-a", "generator-1", "trace-1", "source-1", []byte("payload"))
	require.NoError(t, err)

	msg, ok, err := q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, msg.ExecutionKey)
	assert.Equal(t, StatusClaimed, msg.Status)
	assert.Equal(t, 1, msg.TryCount)
}

func TestFakeQueue_GetReturnsFalseWhenEmpty(t *testing.T) {
	q := NewFakeQueue()
	_, ok, err := q.Get(context.Background(), "tenant-a", "generator-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFakeQueue_ClaimedMessageNotVisibleUntilTimeoutElapses(t *testing.T) {
	q := NewFakeQueue()
	ctx := context.Background()
	_, err := q.Put(ctx, "tenant-a", "generator-1", "trace-1", "source-1", nil)
	require.NoError(t, err)

	_, ok, err := q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	assert.False(t, ok, "claimed message must stay invisible before visibility timeout elapses")

	q.advanceClockFor(DefaultVisibilityTimeout + 1)
	_, ok, err = q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	assert.True(t, ok, "abandoned claim becomes reclaimable once visible_after elapses, with no heartbeat")
}

func TestFakeQueue_FIFOByCreationTimeThenExecutionKey(t *testing.T) {
	q := NewFakeQueue()
	ctx := context.Background()

	first, err := q.Put(ctx, "tenant-a", "generator-1", "t", "s", []byte("1"))
	require.NoError(t, err)
	second, err := q.Put(ctx, "tenant-a", "generator-1", "t", "s", []byte("2"))
	require.NoError(t, err)

	msg, ok, err := q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, msg.ExecutionKey)

	msg, ok, err = q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, msg.ExecutionKey)
}

func TestFakeQueue_AckSuccessMarksProcessed(t *testing.T) {
	q := NewFakeQueue()
	ctx := context.Background()
	key, _ := q.Put(ctx, "tenant-a", "generator-1", "t", "s", nil)
	_, _, err := q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)

	require.NoError(t, q.AckSuccess(ctx, key, []byte("result")))
	assert.Equal(t, StatusProcessed, q.messages[key].Status)
	assert.Equal(t, []byte("result"), q.messages[key].ExecutionResult)
}

func TestFakeQueue_AckFailureReenqueuesUnderMaxTries(t *testing.T) {
	q := NewFakeQueue()
	ctx := context.Background()
	key, _ := q.Put(ctx, "tenant-a", "generator-1", "t", "s", nil)
	_, _, err := q.Get(ctx, "tenant-a", "generator-1")
	require.NoError(t, err)

	require.NoError(t, q.AckFailure(ctx, key))
	assert.Equal(t, StatusEnqueued, q.messages[key].Status)
	assert.Equal(t, 1, q.messages[key].TryCount)
}

func TestFakeQueue_AckFailureExhaustsToFailedAtMaxTries(t *testing.T) {
	q := NewFakeQueue()
	q.maxTries = 2
	ctx := context.Background()
	key, _ := q.Put(ctx, "tenant-a", "generator-1", "t", "s", nil)

	for i := 0; i < 2; i++ {
		q.advanceClockFor(DefaultVisibilityTimeout + time.Minute)
		_, ok, err := q.Get(ctx, "tenant-a", "generator-1")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, q.AckFailure(ctx, key))
	}

	assert.Equal(t, StatusFailed, q.messages[key].Status)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	assert.Less(t, Backoff(0), Backoff(1))
	assert.Less(t, Backoff(1), Backoff(2))
	assert.LessOrEqual(t, Backoff(20), time.Minute)
}
