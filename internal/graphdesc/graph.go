package graphdesc

import (
	"encoding/json"
	"fmt"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// EdgeKey identifies an outbound edge bucket within a GraphDescription: all
// edges sharing From and EdgeName, regardless of destination.
type EdgeKey struct {
	From     NodeKey
	EdgeName string
}

// GraphDescription is the full payload a generator plugin hands to the
// identifier (spec §4.A/§6): a set of node observations and the edges
// between them, all addressed by ephemeral NodeKey.
type GraphDescription struct {
	Nodes map[NodeKey]*NodeDescription
	Edges map[EdgeKey]map[NodeKey]struct{}
}

func NewGraphDescription() *GraphDescription {
	return &GraphDescription{
		Nodes: make(map[NodeKey]*NodeDescription),
		Edges: make(map[EdgeKey]map[NodeKey]struct{}),
	}
}

// AddNode registers or replaces the node observation at key. Generators call
// this once per node_key per GraphDescription; repeated keys across distinct
// GraphDescriptions are merged later by the identifier.
func (g *GraphDescription) AddNode(key NodeKey, node *NodeDescription) {
	g.Nodes[key] = node
}

// AddEdge records a directed edge from -> to under edgeName. The mutation
// service (Component E) writes the reverse edge using the schema manager
// (Component D); callers of GraphDescription only ever declare the forward
// direction.
func (g *GraphDescription) AddEdge(from NodeKey, edgeName string, to NodeKey) {
	k := EdgeKey{From: from, EdgeName: edgeName}
	bucket, ok := g.Edges[k]
	if !ok {
		bucket = make(map[NodeKey]struct{})
		g.Edges[k] = bucket
	}
	bucket[to] = struct{}{}
}

// EdgesFrom returns the destination node keys reachable from 'from' via
// edgeName, in no particular order.
func (g *GraphDescription) EdgesFrom(from NodeKey, edgeName string) []NodeKey {
	bucket := g.Edges[EdgeKey{From: from, EdgeName: edgeName}]
	out := make([]NodeKey, 0, len(bucket))
	for k := range bucket {
		out = append(out, k)
	}
	return out
}

// Merge folds other into g in place: nodes sharing a NodeKey are merged
// per NodeDescription.Merge, new nodes are adopted, and edge sets are
// unioned. Returns an error if any shared node fails to merge (schema
// violation, ClassPersistent).
func (g *GraphDescription) Merge(other *GraphDescription) error {
	for key, node := range other.Nodes {
		existing, ok := g.Nodes[key]
		if !ok {
			g.Nodes[key] = node.Clone()
			continue
		}
		if _, err := existing.Merge(node); err != nil {
			return fmt.Errorf("graphdesc: merging node %q: %w", key, err)
		}
	}
	for edgeKey, dests := range other.Edges {
		bucket, ok := g.Edges[edgeKey]
		if !ok {
			bucket = make(map[NodeKey]struct{}, len(dests))
			g.Edges[edgeKey] = bucket
		}
		for d := range dests {
			bucket[d] = struct{}{}
		}
	}
	return nil
}

// wireGraph is the JSON-friendly shape of GraphDescription: maps keyed by
// composite structs don't marshal directly, so edges are flattened to a list.
type wireGraph struct {
	Nodes map[NodeKey]*NodeDescription `json:"nodes"`
	Edges []wireEdgeBucket             `json:"edges"`
}

type wireEdgeBucket struct {
	From     NodeKey   `json:"from"`
	EdgeName string    `json:"edge_name"`
	To       []NodeKey `json:"to"`
}

func (g *GraphDescription) MarshalJSON() ([]byte, error) {
	w := wireGraph{
		Nodes: g.Nodes,
		Edges: make([]wireEdgeBucket, 0, len(g.Edges)),
	}
	for k, dests := range g.Edges {
		to := make([]NodeKey, 0, len(dests))
		for d := range dests {
			to = append(to, d)
		}
		w.Edges = append(w.Edges, wireEdgeBucket{From: k.From, EdgeName: k.EdgeName, To: to})
	}
	return json.Marshal(w)
}

func (g *GraphDescription) UnmarshalJSON(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Nodes == nil {
		w.Nodes = make(map[NodeKey]*NodeDescription)
	}
	g.Nodes = w.Nodes
	g.Edges = make(map[EdgeKey]map[NodeKey]struct{}, len(w.Edges))
	for _, bucket := range w.Edges {
		k := EdgeKey{From: bucket.From, EdgeName: bucket.EdgeName}
		dests := make(map[NodeKey]struct{}, len(bucket.To))
		for _, d := range bucket.To {
			dests[d] = struct{}{}
		}
		g.Edges[k] = dests
	}
	return nil
}

// Validate checks structural invariants the mutation service (E) relies on:
// every edge endpoint must reference a node present in the same
// GraphDescription. It does not check that the fields a node's IdStrategy
// names are present on the node.
func (g *GraphDescription) Validate() error {
	for key, dests := range g.Edges {
		if _, ok := g.Nodes[key.From]; !ok {
			return errors.Persistentf("graphdesc: edge %q references unknown source node %q", key.EdgeName, key.From)
		}
		for d := range dests {
			if _, ok := g.Nodes[d]; !ok {
				return errors.Persistentf("graphdesc: edge %q from %q references unknown destination %q", key.EdgeName, key.From, d)
			}
		}
	}
	return nil
}
