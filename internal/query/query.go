// Package query implements Component F, declarative graph pattern matching
// over the stored graph (spec §4.F): a GraphQuery describes node property
// filters and edge traversals; QueryGraph* walks the store (QueryGraphFromUid
// runs one goroutine per candidate root, with no limit on their number) and
// returns the first matching subgraph.
package query

import (
	"strconv"
	"strings"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
)

// Operator is a single node-property comparison.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpHas
	OpContains
	OpPrefix
	OpSuffix
)

// PropertyFilter is one comparison against a named property. Multiple
// PropertyFilters on the same PropertyName within a NodeQuery are OR'd
// together; filters across distinct PropertyNames are AND'd (spec §4.F).
type PropertyFilter struct {
	Operator Operator
	Value    string
}

// Matches evaluates the filter against a property; OpHas ignores Value and
// only checks presence, which callers express by passing prop, true.
func (f PropertyFilter) Matches(prop graphdesc.NodeProperty, present bool) bool {
	switch f.Operator {
	case OpHas:
		return present
	}
	if !present {
		return false
	}
	s := propertyString(prop)
	switch f.Operator {
	case OpEq:
		return s == f.Value
	case OpNeq:
		return s != f.Value
	case OpContains:
		return strings.Contains(s, f.Value)
	case OpPrefix:
		return strings.HasPrefix(s, f.Value)
	case OpSuffix:
		return strings.HasSuffix(s, f.Value)
	default:
		return false
	}
}

func propertyString(p graphdesc.NodeProperty) string {
	switch p.Tag {
	case graphdesc.ImmutableString:
		return p.Str
	case graphdesc.ImmutableI64, graphdesc.IncrementOnlyI64, graphdesc.DecrementOnlyI64:
		return strconv.FormatInt(p.Int, 10)
	default:
		return strconv.FormatUint(p.Uint, 10)
	}
}

// NodeQuery is one node pattern: a node-type constraint, a set of
// per-property filters (OR within a property, AND across properties), and
// the edges to traverse from a matching node, each leading to a nested
// NodeQuery.
type NodeQuery struct {
	NodeType        string
	PropertyFilters map[graphdesc.PropertyName][]PropertyFilter
	Edges           map[string]*NodeQuery
}

func NewNodeQuery(nodeType string) *NodeQuery {
	return &NodeQuery{
		NodeType:        nodeType,
		PropertyFilters: make(map[graphdesc.PropertyName][]PropertyFilter),
		Edges:           make(map[string]*NodeQuery),
	}
}

func (q *NodeQuery) With(name graphdesc.PropertyName, filters ...PropertyFilter) *NodeQuery {
	q.PropertyFilters[name] = append(q.PropertyFilters[name], filters...)
	return q
}

func (q *NodeQuery) Edge(edgeName string, dest *NodeQuery) *NodeQuery {
	q.Edges[edgeName] = dest
	return q
}

// MatchesNode evaluates this query's own node-level constraints (not its
// edges) against a candidate's type and properties.
func (q *NodeQuery) MatchesNode(nodeType string, props map[graphdesc.PropertyName]graphdesc.NodeProperty) bool {
	if q.NodeType != "" && q.NodeType != nodeType {
		return false
	}
	for name, filters := range q.PropertyFilters {
		prop, present := props[name]
		matched := false
		for _, f := range filters {
			if f.Matches(prop, present) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// GraphQuery is the top-level query: a pattern rooted at Root, identified by
// QueryID so BFS visited-sets from distinct concurrent queries never
// collide (spec §4.F).
type GraphQuery struct {
	QueryID string
	Root    *NodeQuery
}
