package identity

import (
	"strconv"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
)

// SessionKeyFunc computes the ordered field values hashed into a session
// node's pseudo_key. The default implementation reads IdStrategy.PseudoKeyFields
// verbatim; node types that need to bucket a noisy field (e.g. a connection
// timestamp) to avoid spurious session splits register an override here
// (spec §4.A supplement: per-node-type session key derivation).
type SessionKeyFunc func(node *graphdesc.NodeDescription) []string

var sessionKeyFuncs = map[string]SessionKeyFunc{
	graphdesc.NodeTypeProcess: defaultSessionKey,
	"OutboundConnection":      bucketedConnectionKey,
	"InboundConnection":       bucketedConnectionKey,
}

// RegisterSessionKeyFunc overrides the key derivation used for a node type.
// Exposed so callers wiring a custom generator schema can extend the
// registry without forking this package.
func RegisterSessionKeyFunc(nodeType string, fn SessionKeyFunc) {
	sessionKeyFuncs[nodeType] = fn
}

// SessionKeyFieldValues returns the field values to hash for node's
// pseudo_key, using a registered override when one exists.
func SessionKeyFieldValues(node *graphdesc.NodeDescription) []string {
	if fn, ok := sessionKeyFuncs[node.NodeType]; ok {
		return fn(node)
	}
	return defaultSessionKey(node)
}

func defaultSessionKey(node *graphdesc.NodeDescription) []string {
	return node.FieldValues(node.IdStrategy.PseudoKeyFields)
}

// connectionBucketSeconds matches the original generator's connection
// dedup window: a connection observed within the same 10-second bucket as
// another is folded into one session instead of splitting on jitter.
const connectionBucketSeconds = 10

// bucketedConnectionKey rounds the connection timestamp down to the nearest
// connectionBucketSeconds before hashing, so near-simultaneous observations
// of the same network connection collapse onto the same pseudo_key.
func bucketedConnectionKey(node *graphdesc.NodeDescription) []string {
	fields := node.FieldValues(node.IdStrategy.PseudoKeyFields)
	for i, name := range node.IdStrategy.PseudoKeyFields {
		if name == "timestamp" || name == graphdesc.PropLastSeenTimestamp {
			if ts, ok := node.Property(name); ok {
				bucketed := shaveDigits(ts.Uint, 0)
				fields[i] = strconv.FormatUint(bucketed, 10)
			}
		}
	}
	return fields
}

// shaveDigits rounds input down to a multiple of 10^(digits+1), mirroring
// the original generator's shave_int bucketing.
func shaveDigits(input uint64, digits uint) uint64 {
	var mod uint64 = 1
	for i := uint(0); i < digits+1; i++ {
		mod *= 10
	}
	return input - (input % mod)
}
