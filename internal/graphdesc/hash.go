package graphdesc

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PseudoKey computes the blake2b-128 digest over tenant, node type, and the
// ordered key field values, per spec §4.B. Used for both Session
// pseudo_key (pre-resolution, may collide across distinct sessions sharing a
// key window) and Static canonical_key (post-resolution, permanent identity).
func PseudoKey(tenantID string, nodeType string, fieldValues []string) ([16]byte, error) {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return [16]byte{}, fmt.Errorf("graphdesc: blake2b init: %w", err)
	}
	writeFramed(h, []byte(tenantID))
	writeFramed(h, []byte(nodeType))
	for _, v := range fieldValues {
		writeFramed(h, []byte(v))
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// writeFramed hashes a length prefix ahead of each field so that
// ("ab","c") and ("a","bc") never collide.
func writeFramed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// FieldValues extracts the string representation of each named property in
// order, for hashing. A missing field is an empty string — callers validate
// field presence before calling PseudoKey if the field is required.
func (n *NodeDescription) FieldValues(fields []PropertyName) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		p, ok := n.Properties[f]
		if !ok {
			out[i] = ""
			continue
		}
		out[i] = propertyString(p)
	}
	return out
}

func propertyString(p NodeProperty) string {
	switch p.Tag {
	case ImmutableString:
		return p.Str
	case ImmutableI64, IncrementOnlyI64, DecrementOnlyI64:
		return fmt.Sprintf("%d", p.Int)
	case ImmutableU64, IncrementOnlyU64, DecrementOnlyU64:
		return fmt.Sprintf("%d", p.Uint)
	default:
		return ""
	}
}
