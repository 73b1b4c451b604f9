package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/uid"
)

func newTestService(t *testing.T) (*Service, *FakeStore, *schema.FakeManager) {
	t.Helper()
	store := NewFakeStore()
	schemas := schema.NewFakeManager()
	require.NoError(t, schemas.DeploySchema(context.Background(), []schema.EdgeSchema{
		{TenantID: "tenant-a", NodeType: "Process", SchemaVersion: 1, EdgeName: "children", ReverseEdgeName: "parent", Cardinality: schema.CardinalityToMany},
	}))
	svc := NewService("tenant-a", store, store, schemas, 10)
	return svc, store, schemas
}

func TestApplyGraph_WritesNodesAndEdges(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g := identified.NewIdentifiedGraph()
	parent := identified.NewIdentifiedNode(uid.Uid(1), "Process")
	parent.SetProperty("process_id", graphdesc.NewImmutableI64(100))
	child := identified.NewIdentifiedNode(uid.Uid(2), "Process")
	child.SetProperty("process_id", graphdesc.NewImmutableI64(200))
	g.AddNode(parent)
	g.AddNode(child)
	g.AddEdge(uid.Uid(1), "children", uid.Uid(2))

	result, err := svc.ApplyGraph(ctx, g)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 2, result.NodesWritten)
	assert.Equal(t, 1, result.EdgesWritten)

	nt, ok := store.NodeType(uid.Uid(1))
	require.True(t, ok)
	assert.Equal(t, "Process", nt)

	assert.Len(t, store.EdgeList, 2) // forward + reverse
}

func TestApplyGraph_ReverseEdgeUsesSchema(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g := identified.NewIdentifiedGraph()
	g.AddNode(identified.NewIdentifiedNode(uid.Uid(1), "Process"))
	g.AddNode(identified.NewIdentifiedNode(uid.Uid(2), "Process"))
	g.AddEdge(uid.Uid(1), "children", uid.Uid(2))

	_, err := svc.ApplyGraph(ctx, g)
	require.NoError(t, err)

	var sawReverse bool
	for _, e := range store.EdgeList {
		if e.From == uid.Uid(2) && e.EdgeName == "parent" && e.To == uid.Uid(1) {
			sawReverse = true
		}
	}
	assert.True(t, sawReverse)
}

func TestApplyGraph_UnknownEdgeIsPartialFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	g := identified.NewIdentifiedGraph()
	g.AddNode(identified.NewIdentifiedNode(uid.Uid(1), "Process"))
	g.AddNode(identified.NewIdentifiedNode(uid.Uid(2), "Process"))
	g.AddEdge(uid.Uid(1), "undeclared_edge", uid.Uid(2))

	result, err := svc.ApplyGraph(ctx, g)
	require.NoError(t, err)
	assert.False(t, result.OK())
	require.Len(t, result.FailedEdges, 1)
}

func TestApplyGraph_MaxPropertyKeepsLarger(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g := identified.NewIdentifiedGraph()
	n := identified.NewIdentifiedNode(uid.Uid(1), "Process")
	n.SetProperty("last_seen_timestamp", graphdesc.NewIncrementOnlyU64(100))
	g.AddNode(n)

	_, err := svc.ApplyGraph(ctx, g)
	require.NoError(t, err)

	g2 := identified.NewIdentifiedGraph()
	n2 := identified.NewIdentifiedNode(uid.Uid(1), "Process")
	n2.SetProperty("last_seen_timestamp", graphdesc.NewIncrementOnlyU64(50))
	g2.AddNode(n2)
	_, err = svc.ApplyGraph(ctx, g2)
	require.NoError(t, err)

	p, ok := store.Property(uid.Uid(1), "last_seen_timestamp")
	require.True(t, ok)
	assert.EqualValues(t, 100, p.Uint)
}
