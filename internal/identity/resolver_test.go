package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

func newTestResolver(t *testing.T) (*Resolver, *FakeSessionStore, *FakeStaticStore) {
	t.Helper()
	sessionStore := NewFakeSessionStore()
	staticStore := NewFakeStaticStore()

	var counter uint64
	allocate := func(context.Context) (uid.Uid, error) {
		counter++
		return uid.Uid(counter), nil
	}

	r := NewResolver("tenant-a", sessionStore, staticStore, NoopAssetResolver{}, NoopRetryCache{}, allocate, 5)
	return r, sessionStore, staticStore
}

func TestResolver_StaticStrategySameKeySameUid(t *testing.T) {
	r, _, _ := newTestResolver(t)
	ctx := context.Background()

	n1 := graphdesc.NewNodeDescription("Asset", graphdesc.StaticStrategy(false, graphdesc.PropAssetID))
	n1.SetProperty(graphdesc.PropAssetID, graphdesc.NewImmutableString("asset-1"))

	n2 := graphdesc.NewNodeDescription("Asset", graphdesc.StaticStrategy(false, graphdesc.PropAssetID))
	n2.SetProperty(graphdesc.PropAssetID, graphdesc.NewImmutableString("asset-1"))

	u1, err := r.Resolve(ctx, n1)
	require.NoError(t, err)
	u2, err := r.Resolve(ctx, n2)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
}

func TestResolver_StaticStrategyDifferentKeyDifferentUid(t *testing.T) {
	r, _, _ := newTestResolver(t)
	ctx := context.Background()

	n1 := graphdesc.NewNodeDescription("Asset", graphdesc.StaticStrategy(false, graphdesc.PropAssetID))
	n1.SetProperty(graphdesc.PropAssetID, graphdesc.NewImmutableString("asset-1"))
	n2 := graphdesc.NewNodeDescription("Asset", graphdesc.StaticStrategy(false, graphdesc.PropAssetID))
	n2.SetProperty(graphdesc.PropAssetID, graphdesc.NewImmutableString("asset-2"))

	u1, err := r.Resolve(ctx, n1)
	require.NoError(t, err)
	u2, err := r.Resolve(ctx, n2)
	require.NoError(t, err)

	assert.NotEqual(t, u1, u2)
}

func sessionProcessNode(pid int64, lastSeen uint64) *graphdesc.NodeDescription {
	n := graphdesc.NewNodeDescription(graphdesc.NodeTypeProcess, graphdesc.SessionStrategy(
		false,
		graphdesc.PropCreatedTimestamp, graphdesc.PropLastSeenTimestamp, graphdesc.PropTerminatedTimestamp,
		[]graphdesc.PropertyName{graphdesc.PropProcessID},
		nil,
	))
	n.SetProperty(graphdesc.PropProcessID, graphdesc.NewImmutableI64(pid))
	n.SetProperty(graphdesc.PropLastSeenTimestamp, graphdesc.NewIncrementOnlyU64(lastSeen))
	return n
}

func TestResolver_SessionStrategyRepeatedObservationSameUid(t *testing.T) {
	r, _, _ := newTestResolver(t)
	ctx := context.Background()

	n1 := sessionProcessNode(4242, 1000)
	u1, err := r.ResolveSessionNode(ctx, n1, true)
	require.NoError(t, err)

	n2 := sessionProcessNode(4242, 1001)
	u2, err := r.ResolveSessionNode(ctx, n2, false)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
}

func TestResolver_SessionStrategyTerminateLatchesEndCanon(t *testing.T) {
	r, sessionStore, _ := newTestResolver(t)
	ctx := context.Background()

	created := sessionProcessNode(4242, 1000)
	u, err := r.ResolveSessionNode(ctx, created, true)
	require.NoError(t, err)

	terminated := graphdesc.NewNodeDescription(graphdesc.NodeTypeProcess, graphdesc.SessionStrategy(
		false,
		graphdesc.PropCreatedTimestamp, graphdesc.PropLastSeenTimestamp, graphdesc.PropTerminatedTimestamp,
		[]graphdesc.PropertyName{graphdesc.PropProcessID},
		nil,
	))
	terminated.SetProperty(graphdesc.PropProcessID, graphdesc.NewImmutableI64(4242))
	terminated.SetProperty(graphdesc.PropTerminatedTimestamp, graphdesc.NewImmutableU64(5000))

	u2, err := r.ResolveSessionNode(ctx, terminated, false)
	require.NoError(t, err)
	assert.Equal(t, u, u2)

	rows := sessionStore.sessions[sessionKey{"tenant-a", pseudoKeyOf(t, terminated)}]
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsEndCanon)
	assert.EqualValues(t, 5000, rows[0].EndTime)
}

func pseudoKeyOf(t *testing.T, node *graphdesc.NodeDescription) string {
	t.Helper()
	fields := SessionKeyFieldValues(node)
	key, err := graphdesc.PseudoKey("tenant-a", node.NodeType, fields)
	require.NoError(t, err)
	return string(key[:])
}

func TestResolver_EndTimeNeverFalls(t *testing.T) {
	sess := Session{EndTime: 1000}
	changed := applyObservation(&sess, ActionUpdateOrCreate, 500)
	assert.False(t, changed)
	assert.EqualValues(t, 1000, sess.EndTime)

	changed = applyObservation(&sess, ActionUpdateOrCreate, 2000)
	assert.True(t, changed)
	assert.EqualValues(t, 2000, sess.EndTime)
}

func TestResolveTie_SmallerUidWins(t *testing.T) {
	a := &Session{Uid: 5}
	b := &Session{Uid: 3}
	assert.Same(t, b, resolveTie(a, b))
	assert.Same(t, b, resolveTie(b, a))
}
