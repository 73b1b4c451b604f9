// Package graphdesc implements the Graph-Description model of spec §4.A: a
// typed, in-memory, pre-identification graph keyed by ephemeral node_key
// strings, with per-property merge semantics. This is the contract between
// generator plugins (outside this repo, spec §6) and the identifier (B).
package graphdesc

import (
	"encoding/json"
	"fmt"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// PropertyTag is the tag of the NodeProperty union; it also encodes the
// merge rule applied when two observations of the same canonical node
// present the same property (spec §3).
type PropertyTag int

const (
	ImmutableString PropertyTag = iota
	ImmutableI64
	IncrementOnlyI64
	DecrementOnlyI64
	ImmutableU64
	IncrementOnlyU64
	DecrementOnlyU64
)

func (t PropertyTag) String() string {
	switch t {
	case ImmutableString:
		return "ImmutableString"
	case ImmutableI64:
		return "ImmutableI64"
	case IncrementOnlyI64:
		return "IncrementOnlyI64"
	case DecrementOnlyI64:
		return "DecrementOnlyI64"
	case ImmutableU64:
		return "ImmutableU64"
	case IncrementOnlyU64:
		return "IncrementOnlyU64"
	case DecrementOnlyU64:
		return "DecrementOnlyU64"
	default:
		return "Unknown"
	}
}

// PropertyName names a property within a NodeDescription.
type PropertyName string

// NodeProperty is the tagged union described in spec §3. Exactly one of the
// value fields is meaningful, selected by Tag.
type NodeProperty struct {
	Tag    PropertyTag
	Str    string
	Int    int64
	Uint   uint64
}

func NewImmutableString(v string) NodeProperty { return NodeProperty{Tag: ImmutableString, Str: v} }
func NewImmutableI64(v int64) NodeProperty      { return NodeProperty{Tag: ImmutableI64, Int: v} }
func NewIncrementOnlyI64(v int64) NodeProperty  { return NodeProperty{Tag: IncrementOnlyI64, Int: v} }
func NewDecrementOnlyI64(v int64) NodeProperty  { return NodeProperty{Tag: DecrementOnlyI64, Int: v} }
func NewImmutableU64(v uint64) NodeProperty     { return NodeProperty{Tag: ImmutableU64, Uint: v} }
func NewIncrementOnlyU64(v uint64) NodeProperty { return NodeProperty{Tag: IncrementOnlyU64, Uint: v} }
func NewDecrementOnlyU64(v uint64) NodeProperty { return NodeProperty{Tag: DecrementOnlyU64, Uint: v} }

// MergeProperty folds two observations of the same property per spec §4.A:
// immutable keeps the first committed value (a), increment-only keeps max,
// decrement-only keeps min. Mismatched tags are a schema violation
// (ClassPersistent): a property's type is fixed by schema (spec §3 invariant).
func MergeProperty(a, b NodeProperty) (NodeProperty, bool, error) {
	if a.Tag != b.Tag {
		return NodeProperty{}, false, errors.Persistentf(
			"graphdesc: property tag mismatch %s vs %s", a.Tag, b.Tag)
	}

	switch a.Tag {
	case ImmutableString, ImmutableI64, ImmutableU64:
		return a, false, nil

	case IncrementOnlyI64:
		if b.Int > a.Int {
			return b, true, nil
		}
		return a, false, nil

	case DecrementOnlyI64:
		if b.Int < a.Int {
			return b, true, nil
		}
		return a, false, nil

	case IncrementOnlyU64:
		if b.Uint > a.Uint {
			return b, true, nil
		}
		return a, false, nil

	case DecrementOnlyU64:
		if b.Uint < a.Uint {
			return b, true, nil
		}
		return a, false, nil

	default:
		return NodeProperty{}, false, errors.Persistentf("graphdesc: unknown property tag %d", a.Tag)
	}
}

type wireProperty struct {
	Tag  string          `json:"tag"`
	Str  string          `json:"str,omitempty"`
	Int  int64           `json:"int,omitempty"`
	Uint uint64          `json:"uint,omitempty"`
}

// MarshalJSON renders the tagged union explicitly so the wire encoding
// round-trips exactly (spec §8 round-trip law).
func (p NodeProperty) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireProperty{
		Tag:  p.Tag.String(),
		Str:  p.Str,
		Int:  p.Int,
		Uint: p.Uint,
	})
}

func (p *NodeProperty) UnmarshalJSON(data []byte) error {
	var w wireProperty
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tag, err := parseTag(w.Tag)
	if err != nil {
		return err
	}
	p.Tag = tag
	p.Str = w.Str
	p.Int = w.Int
	p.Uint = w.Uint
	return nil
}

func parseTag(s string) (PropertyTag, error) {
	switch s {
	case "ImmutableString":
		return ImmutableString, nil
	case "ImmutableI64":
		return ImmutableI64, nil
	case "IncrementOnlyI64":
		return IncrementOnlyI64, nil
	case "DecrementOnlyI64":
		return DecrementOnlyI64, nil
	case "ImmutableU64":
		return ImmutableU64, nil
	case "IncrementOnlyU64":
		return IncrementOnlyU64, nil
	case "DecrementOnlyU64":
		return DecrementOnlyU64, nil
	default:
		return 0, fmt.Errorf("graphdesc: unknown property tag %q", s)
	}
}
