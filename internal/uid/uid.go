// Package uid defines the stable per-tenant node identifier that crosses
// every component boundary past the session identifier (spec §3, Open
// Question (a)): node_key is ephemeral and never leaves graphdesc.GraphDescription.
package uid

import "fmt"

// Uid is a monotonically assigned, nonzero, per-tenant 64-bit node identifier.
// Zero is reserved as the sentinel "no uid."
type Uid uint64

// Nil is the reserved sentinel value; it is never returned by the allocator.
const Nil Uid = 0

// Valid reports whether u is a real, allocated uid.
func (u Uid) Valid() bool {
	return u != Nil
}

func (u Uid) String() string {
	return fmt.Sprintf("%d", uint64(u))
}
