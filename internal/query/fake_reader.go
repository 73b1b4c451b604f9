package query

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// FakeReader is an in-memory GraphReader for unit tests.
type FakeReader struct {
	mu        sync.Mutex
	nodeTypes map[uid.Uid]string
	props     map[uid.Uid]map[graphdesc.PropertyName]graphdesc.NodeProperty
	edges     map[uid.Uid]map[string][]uid.Uid
}

func NewFakeReader() *FakeReader {
	return &FakeReader{
		nodeTypes: make(map[uid.Uid]string),
		props:     make(map[uid.Uid]map[graphdesc.PropertyName]graphdesc.NodeProperty),
		edges:     make(map[uid.Uid]map[string][]uid.Uid),
	}
}

func (r *FakeReader) AddNode(u uid.Uid, nodeType string, props map[graphdesc.PropertyName]graphdesc.NodeProperty) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeTypes[u] = nodeType
	r.props[u] = props
}

func (r *FakeReader) AddEdge(from uid.Uid, edgeName string, to uid.Uid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edges[from] == nil {
		r.edges[from] = make(map[string][]uid.Uid)
	}
	r.edges[from][edgeName] = append(r.edges[from][edgeName], to)
}

func (r *FakeReader) NodeType(_ context.Context, _ string, u uid.Uid) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, ok := r.nodeTypes[u]
	return nt, ok, nil
}

func (r *FakeReader) Properties(_ context.Context, _ string, u uid.Uid) (map[graphdesc.PropertyName]graphdesc.NodeProperty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props[u], nil
}

func (r *FakeReader) EdgesFrom(_ context.Context, _ string, u uid.Uid, edgeName string) ([]uid.Uid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edges[u][edgeName], nil
}

func (r *FakeReader) CandidateRoots(_ context.Context, _, nodeType string) ([]uid.Uid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uid.Uid
	for u, nt := range r.nodeTypes {
		if nt == nodeType {
			out = append(out, u)
		}
	}
	return out, nil
}
