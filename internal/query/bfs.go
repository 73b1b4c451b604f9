package query

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// visitedKey pairs a uid with a query id so BFS visited-sets from distinct
// concurrent GraphQuery executions never collide (spec §4.F).
type visitedKey struct {
	u       uid.Uid
	queryID string
}

type visitedSet struct {
	mu   sync.Mutex
	seen map[visitedKey]bool
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[visitedKey]bool)}
}

// markIfUnseen returns true the first time (u, queryID) is requested, false
// on every subsequent call — used both to prevent infinite traversal on
// cyclic edges and to avoid matching the same node twice into one result.
func (v *visitedSet) markIfUnseen(u uid.Uid, queryID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	k := visitedKey{u, queryID}
	if v.seen[k] {
		return false
	}
	v.seen[k] = true
	return true
}

// Executor runs GraphQuery patterns against a GraphReader.
type Executor struct {
	tenantID string
	reader   GraphReader
}

func NewExecutor(tenantID string, reader GraphReader) *Executor {
	return &Executor{tenantID: tenantID, reader: reader}
}

// QueryGraphWithUid matches q.Root (and recursively q.Root's edges) starting
// from a single known root uid, returning the matched subgraph or ok=false
// if root doesn't satisfy the pattern.
func (e *Executor) QueryGraphWithUid(ctx context.Context, q GraphQuery, root uid.Uid) (*identified.IdentifiedGraph, bool, error) {
	visited := newVisitedSet()
	out := identified.NewIdentifiedGraph()

	matched, err := e.matchNode(ctx, q.QueryID, q.Root, root, visited, out)
	if err != nil {
		return nil, false, err
	}
	if !matched {
		return nil, false, nil
	}
	return out, true, nil
}

// QueryGraphFromUid broadens the search to every node of q.Root's declared
// type, running one BFS per candidate concurrently and returning the first
// match. x_short_circuit: once any candidate matches, the shared context is
// cancelled so sibling searches stop promptly instead of scanning the whole
// tenant (spec §4.F).
func (e *Executor) QueryGraphFromUid(ctx context.Context, q GraphQuery) (*identified.IdentifiedGraph, bool, error) {
	roots, err := e.reader.CandidateRoots(ctx, e.tenantID, q.Root.NodeType)
	if err != nil {
		return nil, false, err
	}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		found  *identified.IdentifiedGraph
		didHit bool
	)

	g, gctx := errgroup.WithContext(searchCtx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			result, matched, err := e.QueryGraphWithUid(gctx, q, root)
			if err != nil {
				return err
			}
			if matched {
				mu.Lock()
				if !didHit {
					didHit = true
					found = result
				}
				mu.Unlock()
				cancel()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !didHit {
		return nil, false, err
	}

	mu.Lock()
	defer mu.Unlock()
	return found, didHit, nil
}

func (e *Executor) matchNode(ctx context.Context, queryID string, nq *NodeQuery, u uid.Uid, visited *visitedSet, out *identified.IdentifiedGraph) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if !visited.markIfUnseen(u, queryID) {
		return true, nil
	}

	nodeType, ok, err := e.reader.NodeType(ctx, e.tenantID, u)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	props, err := e.reader.Properties(ctx, e.tenantID, u)
	if err != nil {
		return false, err
	}

	if !nq.MatchesNode(nodeType, props) {
		return false, nil
	}

	idNode := identified.NewIdentifiedNode(u, nodeType)
	for name, p := range props {
		idNode.SetProperty(name, p)
	}
	out.AddNode(idNode)

	for edgeName, nested := range nq.Edges {
		dests, err := e.reader.EdgesFrom(ctx, e.tenantID, u, edgeName)
		if err != nil {
			return false, err
		}
		matchedAny := false
		for _, dest := range dests {
			m, err := e.matchNode(ctx, queryID, nested, dest, visited, out)
			if err != nil {
				return false, err
			}
			if m {
				matchedAny = true
				out.AddEdge(u, edgeName, dest)
			}
		}
		if !matchedAny {
			return false, nil
		}
	}

	return true, nil
}
