package query

import (
	"context"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// GraphReader is the read-side persistence seam Component F queries
// against. It is intentionally separate from mutation.NodeStore/EdgeStore:
// the write and read paths scale independently and a read replica can
// implement this without ever seeing write traffic.
type GraphReader interface {
	// NodeType returns the node type for uid, or ok=false if it doesn't exist.
	NodeType(ctx context.Context, tenantID string, u uid.Uid) (string, bool, error)
	// Properties returns every property stored for uid.
	Properties(ctx context.Context, tenantID string, u uid.Uid) (map[graphdesc.PropertyName]graphdesc.NodeProperty, error)
	// EdgesFrom returns the destination uids reachable from u via edgeName.
	EdgesFrom(ctx context.Context, tenantID string, u uid.Uid, edgeName string) ([]uid.Uid, error)
	// CandidateRoots returns uids of the given nodeType to use as BFS roots
	// when no specific starting uid is given (QueryGraphFromUid's entry
	// point broadens to "any node of this type").
	CandidateRoots(ctx context.Context, tenantID, nodeType string) ([]uid.Uid, error)
}
