package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

const (
	propHostname graphdesc.PropertyName = "hostname"
	propPid      graphdesc.PropertyName = "pid"
)

func TestPropertyFilter_Operators(t *testing.T) {
	prop := graphdesc.NewImmutableString("web-01.prod")

	assert.True(t, PropertyFilter{Operator: OpEq, Value: "web-01.prod"}.Matches(prop, true))
	assert.False(t, PropertyFilter{Operator: OpEq, Value: "web-02.prod"}.Matches(prop, true))
	assert.True(t, PropertyFilter{Operator: OpNeq, Value: "web-02.prod"}.Matches(prop, true))
	assert.True(t, PropertyFilter{Operator: OpContains, Value: "01"}.Matches(prop, true))
	assert.True(t, PropertyFilter{Operator: OpPrefix, Value: "web-"}.Matches(prop, true))
	assert.True(t, PropertyFilter{Operator: OpSuffix, Value: ".prod"}.Matches(prop, true))
	assert.True(t, PropertyFilter{Operator: OpHas}.Matches(prop, true))
	assert.False(t, PropertyFilter{Operator: OpHas}.Matches(graphdesc.NodeProperty{}, false))
}

func TestNodeQuery_MatchesNode_ORWithinFieldANDAcrossFields(t *testing.T) {
	q := NewNodeQuery("Asset").
		With(propHostname,
			PropertyFilter{Operator: OpEq, Value: "web-01"},
			PropertyFilter{Operator: OpEq, Value: "web-02"},
		).
		With(propPid, PropertyFilter{Operator: OpEq, Value: "100"})

	props := map[graphdesc.PropertyName]graphdesc.NodeProperty{
		propHostname: graphdesc.NewImmutableString("web-02"),
		propPid:      graphdesc.NewImmutableI64(100),
	}
	assert.True(t, q.MatchesNode("Asset", props))

	props[propPid] = graphdesc.NewImmutableI64(999)
	assert.False(t, q.MatchesNode("Asset", props), "pid filter fails AND across fields")

	props[propPid] = graphdesc.NewImmutableI64(100)
	props[propHostname] = graphdesc.NewImmutableString("web-03")
	assert.False(t, q.MatchesNode("Asset", props), "neither OR'd hostname filter matches")
}

func TestNodeQuery_MatchesNode_WrongNodeType(t *testing.T) {
	q := NewNodeQuery("Asset")
	assert.False(t, q.MatchesNode("Process", nil))
}

func buildProcessTree(r *FakeReader) (parent, child uid.Uid) {
	parent, child = uid.Uid(1), uid.Uid(2)
	r.AddNode(parent, "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{
		propPid: graphdesc.NewImmutableI64(100),
	})
	r.AddNode(child, "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{
		propPid: graphdesc.NewImmutableI64(200),
	})
	r.AddEdge(parent, "children", child)
	r.AddEdge(child, "parent", parent)
	return parent, child
}

func TestExecutor_QueryGraphWithUid_MatchesNestedEdge(t *testing.T) {
	r := NewFakeReader()
	parent, child := buildProcessTree(r)
	e := NewExecutor("tenant-a", r)

	q := GraphQuery{
		QueryID: "q1",
		Root: NewNodeQuery("Process").
			With(propPid, PropertyFilter{Operator: OpEq, Value: "100"}).
			Edge("children", NewNodeQuery("Process").
				With(propPid, PropertyFilter{Operator: OpEq, Value: "200"})),
	}

	result, matched, err := e.QueryGraphWithUid(context.Background(), q, parent)
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, 2, result.NodeCount())
	assert.Equal(t, 1, result.EdgeCount())
	_, ok := result.Nodes[child]
	assert.True(t, ok)
}

func TestExecutor_QueryGraphWithUid_NoMatchingEdgeDestinationFails(t *testing.T) {
	r := NewFakeReader()
	parent, _ := buildProcessTree(r)
	e := NewExecutor("tenant-a", r)

	q := GraphQuery{
		QueryID: "q2",
		Root: NewNodeQuery("Process").
			With(propPid, PropertyFilter{Operator: OpEq, Value: "100"}).
			Edge("children", NewNodeQuery("Process").
				With(propPid, PropertyFilter{Operator: OpEq, Value: "999"})),
	}

	_, matched, err := e.QueryGraphWithUid(context.Background(), q, parent)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestExecutor_QueryGraphWithUid_RootPropertyMismatch(t *testing.T) {
	r := NewFakeReader()
	parent, _ := buildProcessTree(r)
	e := NewExecutor("tenant-a", r)

	q := GraphQuery{
		QueryID: "q3",
		Root: NewNodeQuery("Process").
			With(propPid, PropertyFilter{Operator: OpEq, Value: "not-a-pid"}),
	}

	_, matched, err := e.QueryGraphWithUid(context.Background(), q, parent)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestExecutor_VisitedSetPreventsCycleInfiniteLoop(t *testing.T) {
	r := NewFakeReader()
	a, b := uid.Uid(1), uid.Uid(2)
	r.AddNode(a, "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(1)})
	r.AddNode(b, "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(2)})
	r.AddEdge(a, "next", b)
	r.AddEdge(b, "next", a)

	e := NewExecutor("tenant-a", r)
	q := GraphQuery{
		QueryID: "cycle",
		Root:    NewNodeQuery("Process").Edge("next", NewNodeQuery("Process").Edge("next", NewNodeQuery("Process"))),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_, _, _ = e.QueryGraphWithUid(ctx, q, a)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("query did not terminate on a cyclic graph")
	}
}

func TestExecutor_QueryGraphFromUid_FindsMatchAmongCandidates(t *testing.T) {
	r := NewFakeReader()
	r.AddNode(uid.Uid(1), "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(1)})
	r.AddNode(uid.Uid(2), "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(2)})
	r.AddNode(uid.Uid(3), "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(3)})

	e := NewExecutor("tenant-a", r)
	q := GraphQuery{
		QueryID: "q4",
		Root:    NewNodeQuery("Process").With(propPid, PropertyFilter{Operator: OpEq, Value: "2"}),
	}

	result, matched, err := e.QueryGraphFromUid(context.Background(), q)
	require.NoError(t, err)
	require.True(t, matched)
	_, ok := result.Nodes[uid.Uid(2)]
	assert.True(t, ok)
	assert.Equal(t, 1, result.NodeCount())
}

func TestExecutor_QueryGraphFromUid_NoCandidatesMatch(t *testing.T) {
	r := NewFakeReader()
	r.AddNode(uid.Uid(1), "Process", map[graphdesc.PropertyName]graphdesc.NodeProperty{propPid: graphdesc.NewImmutableI64(1)})

	e := NewExecutor("tenant-a", r)
	q := GraphQuery{
		QueryID: "q5",
		Root:    NewNodeQuery("Process").With(propPid, PropertyFilter{Operator: OpEq, Value: "does-not-exist"}),
	}

	_, matched, err := e.QueryGraphFromUid(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, matched)
}
