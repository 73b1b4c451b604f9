package mutation

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

type propKey struct {
	uid  uid.Uid
	name graphdesc.PropertyName
}

// FakeStore is an in-memory NodeStore + EdgeStore for unit tests, applying
// the same merge semantics as the Postgres tables (immutable keeps first,
// max/min keep the extremum) without a database.
type FakeStore struct {
	mu        sync.Mutex
	nodeTypes map[uid.Uid]string
	props     map[propKey]graphdesc.NodeProperty
	edges     map[string]bool
	EdgeList  []FakeEdge
}

type FakeEdge struct {
	TenantID string
	From     uid.Uid
	EdgeName string
	To       uid.Uid
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		nodeTypes: make(map[uid.Uid]string),
		props:     make(map[propKey]graphdesc.NodeProperty),
		edges:     make(map[string]bool),
	}
}

func (f *FakeStore) UpsertNodeType(_ context.Context, _ string, u uid.Uid, nodeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodeTypes[u]; !ok {
		f.nodeTypes[u] = nodeType
	}
	return nil
}

func (f *FakeStore) UpsertImmutable(_ context.Context, _ string, u uid.Uid, _ string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := propKey{u, name}
	if _, ok := f.props[key]; !ok {
		f.props[key] = value
	}
	return nil
}

func (f *FakeStore) UpsertMax(_ context.Context, _ string, u uid.Uid, _ string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := propKey{u, name}
	existing, ok := f.props[key]
	if !ok {
		f.props[key] = value
		return nil
	}
	merged, _, err := graphdesc.MergeProperty(existing, value)
	if err != nil {
		return err
	}
	f.props[key] = merged
	return nil
}

func (f *FakeStore) UpsertMin(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error {
	return f.UpsertMax(ctx, tenantID, u, table, name, value)
}

func (f *FakeStore) UpsertEdge(_ context.Context, tenantID string, from uid.Uid, edgeName string, to uid.Uid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := edgeMapKey(tenantID, from, edgeName, to)
	if f.edges[k] {
		return nil
	}
	f.edges[k] = true
	f.EdgeList = append(f.EdgeList, FakeEdge{TenantID: tenantID, From: from, EdgeName: edgeName, To: to})
	return nil
}

func edgeMapKey(tenantID string, from uid.Uid, edgeName string, to uid.Uid) string {
	return tenantID + "|" + from.String() + "|" + edgeName + "|" + to.String()
}

// Property exposes a stored property value for test assertions.
func (f *FakeStore) Property(u uid.Uid, name graphdesc.PropertyName) (graphdesc.NodeProperty, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.props[propKey{u, name}]
	return p, ok
}

// NodeType exposes a stored node type for test assertions.
func (f *FakeStore) NodeType(u uid.Uid) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nt, ok := f.nodeTypes[u]
	return nt, ok
}
