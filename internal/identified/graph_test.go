package identified

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

func TestIdentifiedGraph_AddNodeMergesDuplicateUid(t *testing.T) {
	g := NewIdentifiedGraph()

	n1 := NewIdentifiedNode(uid.Uid(1), "Process")
	n1.SetProperty("process_id", graphdesc.NewImmutableI64(42))
	g.AddNode(n1)

	n2 := NewIdentifiedNode(uid.Uid(1), "Process")
	n2.SetProperty("process_name", graphdesc.NewImmutableString("cmd.exe"))
	g.AddNode(n2)

	require.Len(t, g.Nodes, 1)
	stored := g.Nodes[uid.Uid(1)]
	_, hasPid := stored.Properties["process_id"]
	_, hasName := stored.Properties["process_name"]
	assert.True(t, hasPid)
	assert.True(t, hasName)
}

func TestIdentifiedGraph_ValidateRejectsDanglingEdge(t *testing.T) {
	g := NewIdentifiedGraph()
	g.AddNode(NewIdentifiedNode(uid.Uid(1), "Process"))
	g.AddEdge(uid.Uid(1), "child_of", uid.Uid(2))

	assert.Error(t, g.Validate())

	g.AddNode(NewIdentifiedNode(uid.Uid(2), "Process"))
	assert.NoError(t, g.Validate())
}

func TestIdentifiedGraph_Counts(t *testing.T) {
	g := NewIdentifiedGraph()
	g.AddNode(NewIdentifiedNode(uid.Uid(1), "Process"))
	g.AddNode(NewIdentifiedNode(uid.Uid(2), "Process"))
	g.AddEdge(uid.Uid(1), "child_of", uid.Uid(2))

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}
