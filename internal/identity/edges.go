package identity

import (
	"context"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// ResolveGraph resolves every node in g and projects its edges into an
// identified.IdentifiedGraph, the unit of work Component E applies. Nodes
// are resolved independently and in any order: strategy fields never
// reference another node_key within the same GraphDescription (spec §4.A
// invariant), so there is no resolution ordering dependency.
func (r *Resolver) ResolveGraph(ctx context.Context, g *graphdesc.GraphDescription) (*identified.IdentifiedGraph, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	resolved := make(map[graphdesc.NodeKey]uid.Uid, len(g.Nodes))
	out := identified.NewIdentifiedGraph()

	for key, node := range g.Nodes {
		u, err := r.Resolve(ctx, node)
		if err != nil {
			return nil, errors.Wrap(err, errors.ClassOf(err), "identity: resolving node "+string(key))
		}
		resolved[key] = u

		idNode := identified.NewIdentifiedNode(u, node.NodeType)
		for name, prop := range node.Properties {
			idNode.SetProperty(name, prop)
		}
		out.AddNode(idNode)
	}

	ProjectEdges(g, resolved, out)

	return out, nil
}

// ProjectEdges rewrites a GraphDescription's NodeKey-addressed edges into
// Uid-addressed edges using the resolved map, skipping edges whose endpoints
// somehow failed to resolve (defensive; Validate already rejects dangling
// references before resolution begins).
func ProjectEdges(g *graphdesc.GraphDescription, resolved map[graphdesc.NodeKey]uid.Uid, out *identified.IdentifiedGraph) {
	for edgeKey, dests := range g.Edges {
		fromUid, ok := resolved[edgeKey.From]
		if !ok {
			continue
		}
		for dest := range dests {
			toUid, ok := resolved[dest]
			if !ok {
				continue
			}
			out.AddEdge(fromUid, edgeKey.EdgeName, toUid)
		}
	}
}
