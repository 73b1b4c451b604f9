package graphdesc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProperty_ImmutableKeepsFirst(t *testing.T) {
	a := NewImmutableString("first")
	b := NewImmutableString("second")

	merged, changed, err := MergeProperty(a, b)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "first", merged.Str)
}

func TestMergeProperty_IncrementOnlyKeepsMax(t *testing.T) {
	a := NewIncrementOnlyI64(10)
	b := NewIncrementOnlyI64(20)

	merged, changed, err := MergeProperty(a, b)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.EqualValues(t, 20, merged.Int)

	merged, changed, err = MergeProperty(b, a)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.EqualValues(t, 20, merged.Int)
}

func TestMergeProperty_DecrementOnlyKeepsMin(t *testing.T) {
	a := NewDecrementOnlyU64(50)
	b := NewDecrementOnlyU64(30)

	merged, changed, err := MergeProperty(a, b)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.EqualValues(t, 30, merged.Uint)
}

func TestMergeProperty_TagMismatchIsPersistent(t *testing.T) {
	_, _, err := MergeProperty(NewImmutableString("x"), NewImmutableI64(1))
	require.Error(t, err)
}

func TestNodeDescription_MergeAdoptsNewFields(t *testing.T) {
	n := NewNodeDescription("Process", StaticStrategy(false, "process_id"))
	n.SetProperty("process_id", NewImmutableI64(42))

	other := NewNodeDescription("Process", StaticStrategy(false, "process_id"))
	other.SetProperty("process_name", NewImmutableString("cmd.exe"))
	other.SetProperty("process_id", NewImmutableI64(42))

	changed, err := n.Merge(other)
	require.NoError(t, err)
	assert.True(t, changed)

	p, ok := n.Property("process_name")
	require.True(t, ok)
	assert.Equal(t, "cmd.exe", p.Str)
}

func TestNodeDescription_MergeTypeMismatch(t *testing.T) {
	n := NewNodeDescription("Process", StaticStrategy(false))
	other := NewNodeDescription("Asset", StaticStrategy(false))
	_, err := n.Merge(other)
	require.Error(t, err)
}

func TestGraphDescription_MergeUnionsEdges(t *testing.T) {
	g := NewGraphDescription()
	a := NewNodeDescription("Process", StaticStrategy(false))
	g.AddNode("p1", a)
	g.AddNode("p2", NewNodeDescription("Process", StaticStrategy(false)))
	g.AddEdge("p1", "child_of", "p2")

	other := NewGraphDescription()
	other.AddNode("p1", NewNodeDescription("Process", StaticStrategy(false)))
	other.AddNode("p3", NewNodeDescription("Process", StaticStrategy(false)))
	other.AddEdge("p1", "child_of", "p3")

	require.NoError(t, g.Merge(other))
	assert.Len(t, g.Nodes, 3)

	dests := g.EdgesFrom("p1", "child_of")
	assert.ElementsMatch(t, []NodeKey{"p2", "p3"}, dests)
}

func TestGraphDescription_Validate(t *testing.T) {
	g := NewGraphDescription()
	g.AddNode("p1", NewNodeDescription("Process", StaticStrategy(false)))
	g.AddEdge("p1", "child_of", "missing")
	assert.Error(t, g.Validate())
}

func TestGraphDescription_JSONRoundTrip(t *testing.T) {
	g := NewGraphDescription()
	proc := NewNodeDescription("Process", StaticStrategy(false, "process_id"))
	proc.SetProperty("process_id", NewImmutableI64(7))
	proc.SetProperty("last_seen_timestamp", NewIncrementOnlyU64(1000))
	g.AddNode("p1", proc)
	g.AddNode("p2", NewNodeDescription("Process", StaticStrategy(false)))
	g.AddEdge("p1", "child_of", "p2")

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var round GraphDescription
	require.NoError(t, json.Unmarshal(raw, &round))

	assert.Len(t, round.Nodes, 2)
	p, ok := round.Nodes["p1"].Property("process_id")
	require.True(t, ok)
	assert.EqualValues(t, 7, p.Int)

	dests := round.EdgesFrom("p1", "child_of")
	assert.ElementsMatch(t, []NodeKey{"p2"}, dests)
}

func TestNewAssetNode_RequiresIdentity(t *testing.T) {
	_, err := NewAssetNode("", "", 0)
	require.Error(t, err)

	n, err := NewAssetNode("", "host-01", 100)
	require.NoError(t, err)
	p, ok := n.Property(PropHostname)
	require.True(t, ok)
	assert.Equal(t, "host-01", p.Str)
}

func TestNewProcessNode_SessionStrategy(t *testing.T) {
	n := NewProcessNode(4242, "svchost.exe", 1000, 2000)
	assert.Equal(t, NodeTypeProcess, n.NodeType)
	assert.Equal(t, StrategySession, n.IdStrategy.Kind)
	assert.True(t, n.IdStrategy.PrimaryKeyRequiresAssetID)
}

func TestPseudoKey_Deterministic(t *testing.T) {
	k1, err := PseudoKey("tenant-a", "Process", []string{"1000", "4242"})
	require.NoError(t, err)
	k2, err := PseudoKey("tenant-a", "Process", []string{"1000", "4242"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := PseudoKey("tenant-b", "Process", []string{"1000", "4242"})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}
