package schema

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/errors"
)

type fakeKey struct {
	tenantID      string
	nodeType      string
	schemaVersion int
	edgeName      string
}

// FakeManager is an in-memory Manager for tests that exercise Component E
// without a database (spec §6's test-seam pattern: fake the store, not the
// database driver).
type FakeManager struct {
	mu    sync.RWMutex
	edges map[fakeKey]EdgeSchema
}

func NewFakeManager() *FakeManager {
	return &FakeManager{edges: make(map[fakeKey]EdgeSchema)}
}

func (f *FakeManager) GetEdgeSchema(_ context.Context, tenantID, nodeType string, schemaVersion int, edgeName string) (EdgeSchema, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	es, ok := f.edges[fakeKey{tenantID, nodeType, schemaVersion, edgeName}]
	if !ok {
		return EdgeSchema{}, errors.Persistentf(
			"schema: no edge %q declared for %s/%s@v%d", edgeName, tenantID, nodeType, schemaVersion)
	}
	return es, nil
}

func (f *FakeManager) DeploySchema(_ context.Context, edges []EdgeSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range edges {
		f.edges[fakeKey{e.TenantID, e.NodeType, e.SchemaVersion, e.EdgeName}] = e
	}
	return nil
}
