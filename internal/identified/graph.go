// Package identified holds the post-identification graph model: the output
// of Component B (spec §4.B), where every node_key has been resolved to a
// permanent uid.Uid and is ready for Component E (graph mutation) to apply.
package identified

import (
	"fmt"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// IdentifiedNode is a NodeDescription whose identity has been resolved: the
// property set and merge semantics are unchanged from graphdesc, but the
// node is now addressed by a stable Uid instead of an ephemeral NodeKey.
type IdentifiedNode struct {
	Uid        uid.Uid
	NodeType   string
	Properties map[graphdesc.PropertyName]graphdesc.NodeProperty
}

func NewIdentifiedNode(u uid.Uid, nodeType string) *IdentifiedNode {
	return &IdentifiedNode{
		Uid:        u,
		NodeType:   nodeType,
		Properties: make(map[graphdesc.PropertyName]graphdesc.NodeProperty),
	}
}

func (n *IdentifiedNode) SetProperty(name graphdesc.PropertyName, p graphdesc.NodeProperty) {
	n.Properties[name] = p
}

// Merge folds other into n using the same per-property rules as
// graphdesc.NodeDescription.Merge — identity resolution changes addressing,
// not merge semantics (spec §4.B invariant: merge rules are schema
// properties, independent of id strategy).
func (n *IdentifiedNode) Merge(other *IdentifiedNode) (changed bool, err error) {
	if n.NodeType != other.NodeType {
		return false, errors.Persistentf("identified: node type mismatch %q vs %q for uid %s", n.NodeType, other.NodeType, n.Uid)
	}
	for name, op := range other.Properties {
		existing, ok := n.Properties[name]
		if !ok {
			n.Properties[name] = op
			changed = true
			continue
		}
		merged, propChanged, mergeErr := graphdesc.MergeProperty(existing, op)
		if mergeErr != nil {
			return changed, errors.Wrap(mergeErr, errors.ClassPersistent,
				fmt.Sprintf("identified: merging property %q on uid %s", name, n.Uid))
		}
		if propChanged {
			n.Properties[name] = merged
			changed = true
		}
	}
	return changed, nil
}

// IdentifiedEdge is a resolved, directed edge between two uids, carrying the
// forward name; Component E is responsible for writing the reverse edge too
// (spec §4.E edge symmetry invariant).
type IdentifiedEdge struct {
	From     uid.Uid
	EdgeName string
	To       uid.Uid
}

// IdentifiedGraph is the uid-addressed counterpart of graphdesc.GraphDescription:
// the unit of work the mutation service applies to the store in one
// bounded-concurrency pass (spec §4.E).
type IdentifiedGraph struct {
	Nodes map[uid.Uid]*IdentifiedNode
	Edges []IdentifiedEdge
}

func NewIdentifiedGraph() *IdentifiedGraph {
	return &IdentifiedGraph{
		Nodes: make(map[uid.Uid]*IdentifiedNode),
	}
}

func (g *IdentifiedGraph) AddNode(n *IdentifiedNode) {
	if existing, ok := g.Nodes[n.Uid]; ok {
		existing.Merge(n) //nolint:errcheck // caller-controlled local build, duplicate types impossible
		return
	}
	g.Nodes[n.Uid] = n
}

func (g *IdentifiedGraph) AddEdge(from uid.Uid, edgeName string, to uid.Uid) {
	g.Edges = append(g.Edges, IdentifiedEdge{From: from, EdgeName: edgeName, To: to})
}

// Validate checks that every edge references a node present in this graph —
// the mutation service trusts this invariant before fanning out writes.
func (g *IdentifiedGraph) Validate() error {
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return errors.Persistentf("identified: edge %q references unknown source uid %s", e.EdgeName, e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return errors.Persistentf("identified: edge %q from %s references unknown destination uid %s", e.EdgeName, e.From, e.To)
		}
	}
	return nil
}

// NodeCount and EdgeCount support metrics/logging without leaking map
// internals to callers.
func (g *IdentifiedGraph) NodeCount() int { return len(g.Nodes) }
func (g *IdentifiedGraph) EdgeCount() int { return len(g.Edges) }
