package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeManager_DeployAndLookup(t *testing.T) {
	ctx := context.Background()
	m := NewFakeManager()

	err := m.DeploySchema(ctx, []EdgeSchema{
		{
			TenantID:        "tenant-a",
			NodeType:        "Process",
			SchemaVersion:   1,
			EdgeName:        "children",
			ReverseEdgeName: "parent",
			Cardinality:     CardinalityToMany,
		},
	})
	require.NoError(t, err)

	es, err := m.GetEdgeSchema(ctx, "tenant-a", "Process", 1, "children")
	require.NoError(t, err)
	assert.Equal(t, "parent", es.ReverseEdgeName)
	assert.Equal(t, CardinalityToMany, es.Cardinality)
}

func TestFakeManager_UndeclaredEdgeIsPersistentError(t *testing.T) {
	m := NewFakeManager()
	_, err := m.GetEdgeSchema(context.Background(), "tenant-a", "Process", 1, "ghost")
	require.Error(t, err)
}

func TestFakeManager_DeployReplacesExisting(t *testing.T) {
	ctx := context.Background()
	m := NewFakeManager()
	base := EdgeSchema{TenantID: "t", NodeType: "Process", SchemaVersion: 1, EdgeName: "children", ReverseEdgeName: "parent", Cardinality: CardinalityToMany}

	require.NoError(t, m.DeploySchema(ctx, []EdgeSchema{base}))

	updated := base
	updated.Cardinality = CardinalityToOne
	require.NoError(t, m.DeploySchema(ctx, []EdgeSchema{updated}))

	es, err := m.GetEdgeSchema(ctx, "t", "Process", 1, "children")
	require.NoError(t, err)
	assert.Equal(t, CardinalityToOne, es.Cardinality)
}
