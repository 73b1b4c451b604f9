package graphdesc

import (
	"fmt"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// StrategyKind selects between the two identity strategies of spec §3.
type StrategyKind int

const (
	StrategyStatic StrategyKind = iota
	StrategySession
)

// IdStrategy carries the fields the identifier (Component B) needs to
// compute a node's pseudo_key/canonical_key and, for Session strategy, to run
// session resolution (spec §4.B).
type IdStrategy struct {
	Kind StrategyKind

	// Static fields.
	KeyFields                []PropertyName
	PrimaryKeyRequiresAssetID bool

	// Session fields.
	PseudoKeyFields    []PropertyName
	NegationKeyFields  []PropertyName
	CreatedTsField     PropertyName
	LastSeenTsField    PropertyName
	TerminatedTsField  PropertyName
}

func StaticStrategy(requiresAssetID bool, keyFields ...PropertyName) IdStrategy {
	return IdStrategy{
		Kind:                      StrategyStatic,
		KeyFields:                 keyFields,
		PrimaryKeyRequiresAssetID: requiresAssetID,
	}
}

func SessionStrategy(requiresAssetID bool, created, lastSeen, terminated PropertyName, pseudoKeyFields, negationKeyFields []PropertyName) IdStrategy {
	return IdStrategy{
		Kind:                      StrategySession,
		PrimaryKeyRequiresAssetID: requiresAssetID,
		PseudoKeyFields:           pseudoKeyFields,
		NegationKeyFields:         negationKeyFields,
		CreatedTsField:            created,
		LastSeenTsField:           lastSeen,
		TerminatedTsField:         terminated,
	}
}

// NodeKey is the ephemeral, generator-assigned identity of a node within a
// single GraphDescription. It never survives past identification (spec §3,
// Open Question (a)) — the identifier maps it to a permanent uid.Uid.
type NodeKey string

// NodeDescription is a single node observation: its declared type, the
// properties the generator observed, and the strategy used to identify it.
type NodeDescription struct {
	NodeType   string
	Properties map[PropertyName]NodeProperty
	IdStrategy IdStrategy
}

func NewNodeDescription(nodeType string, strategy IdStrategy) *NodeDescription {
	return &NodeDescription{
		NodeType:   nodeType,
		Properties: make(map[PropertyName]NodeProperty),
		IdStrategy: strategy,
	}
}

func (n *NodeDescription) SetProperty(name PropertyName, p NodeProperty) {
	n.Properties[name] = p
}

func (n *NodeDescription) Property(name PropertyName) (NodeProperty, bool) {
	p, ok := n.Properties[name]
	return p, ok
}

// Merge folds other into n in place, applying MergeProperty per field.
// Properties present in other but absent from n are adopted outright.
// A NodeType mismatch is a schema violation (ClassPersistent).
func (n *NodeDescription) Merge(other *NodeDescription) (changed bool, err error) {
	if n.NodeType != other.NodeType {
		return false, errors.Persistentf(
			"graphdesc: node type mismatch %q vs %q", n.NodeType, other.NodeType)
	}
	for name, op := range other.Properties {
		existing, ok := n.Properties[name]
		if !ok {
			n.Properties[name] = op
			changed = true
			continue
		}
		merged, propChanged, mergeErr := MergeProperty(existing, op)
		if mergeErr != nil {
			return changed, errors.Wrap(mergeErr, errors.ClassPersistent,
				fmt.Sprintf("graphdesc: merging property %q", name))
		}
		if propChanged {
			n.Properties[name] = merged
			changed = true
		}
	}
	return changed, nil
}

// Clone returns a deep copy safe to mutate independently of n.
func (n *NodeDescription) Clone() *NodeDescription {
	props := make(map[PropertyName]NodeProperty, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	return &NodeDescription{
		NodeType:   n.NodeType,
		Properties: props,
		IdStrategy: n.IdStrategy,
	}
}
