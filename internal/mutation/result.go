package mutation

import (
	"sync"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// ApplyResult tallies the outcome of ApplyGraph: which nodes/edges wrote
// cleanly and which failed with a partial (ClassPersistent) error. A
// ClassTransient failure is not recorded here — it aborts ApplyGraph
// entirely via errgroup's first-error propagation, per spec §7.
type ApplyResult struct {
	NodesWritten int
	EdgesWritten int

	FailedNodes []FailedNode
	FailedEdges []FailedEdge
}

type FailedNode struct {
	Uid uid.Uid
	Err error
}

type FailedEdge struct {
	Edge identified.IdentifiedEdge
	Err  error
}

// OK reports whether every node and edge in the batch wrote successfully.
func (r *ApplyResult) OK() bool {
	return len(r.FailedNodes) == 0 && len(r.FailedEdges) == 0
}

type resultCollector struct {
	mu     sync.Mutex
	result *ApplyResult
}

func newResultCollector(result *ApplyResult) *resultCollector {
	return &resultCollector{result: result}
}

// recordNode classifies err: ClassTransient propagates (errgroup aborts the
// batch and retries the whole envelope upstream); ClassPersistent/Fatal are
// recorded as a partial failure and the batch continues.
func (c *resultCollector) recordNode(u uid.Uid, err error) error {
	if err == nil {
		c.mu.Lock()
		c.result.NodesWritten++
		c.mu.Unlock()
		return nil
	}
	if errors.IsRetryable(err) {
		return err
	}
	c.mu.Lock()
	c.result.FailedNodes = append(c.result.FailedNodes, FailedNode{Uid: u, Err: err})
	c.mu.Unlock()
	return nil
}

func (c *resultCollector) recordEdge(e identified.IdentifiedEdge, err error) error {
	if err == nil {
		c.mu.Lock()
		c.result.EdgesWritten++
		c.mu.Unlock()
		return nil
	}
	if errors.IsRetryable(err) {
		return err
	}
	c.mu.Lock()
	c.result.FailedEdges = append(c.result.FailedEdges, FailedEdge{Edge: e, Err: err})
	c.mu.Unlock()
	return nil
}
