// Package mutation implements Component E, the Graph Mutation service (spec
// §4.E): applying an identified.IdentifiedGraph to the tenant-scoped
// columnar store with bounded concurrent fan-out, idempotent per-property
// upserts, and symmetric edge writes.
package mutation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// DefaultMaxFanOut bounds the number of in-flight node/edge writes per
// ApplyGraph call (spec default: 1000).
const DefaultMaxFanOut = 1000

// NodeStore is the per-node-property persistence seam: one method per
// property table, so callers never have to know the SQL, only the merge
// rule the property's tag implies.
type NodeStore interface {
	// UpsertNodeType idempotently records a node's type, required before
	// any property write (spec §4.E: every node row anchors at least a type).
	UpsertNodeType(ctx context.Context, tenantID string, u uid.Uid, nodeType string) error
	// UpsertImmutable writes a property whose value is fixed on first write
	// and never overwritten by a later write (ImmutableString/I64/U64).
	UpsertImmutable(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error
	// UpsertMax writes a property whose stored value becomes
	// max(existing, new) (IncrementOnlyI64/U64).
	UpsertMax(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error
	// UpsertMin writes a property whose stored value becomes
	// min(existing, new) (DecrementOnlyI64/U64).
	UpsertMin(ctx context.Context, tenantID string, u uid.Uid, table string, name graphdesc.PropertyName, value graphdesc.NodeProperty) error
}

// EdgeStore writes one directed edge. Component E always calls this twice
// per declared edge: once forward, once reverse (spec §4.E edge symmetry).
type EdgeStore interface {
	UpsertEdge(ctx context.Context, tenantID string, from uid.Uid, edgeName string, to uid.Uid) error
}

// Service is the Component E contract consumed by the pipeline orchestrator
// (H): apply an already-identified graph to the store.
type Service struct {
	tenantID  string
	nodes     NodeStore
	edges     EdgeStore
	schemas   schema.Manager
	maxFanOut int
}

func NewService(tenantID string, nodes NodeStore, edges EdgeStore, schemas schema.Manager, maxFanOut int) *Service {
	if maxFanOut <= 0 {
		maxFanOut = DefaultMaxFanOut
	}
	return &Service{tenantID: tenantID, nodes: nodes, edges: edges, schemas: schemas, maxFanOut: maxFanOut}
}

// ApplyGraph writes every node property and edge in g, fanning writes out
// across a bounded worker pool. Individual node/edge failures are collected
// as partial failures (ClassPersistent) rather than aborting the whole
// batch; a ClassTransient failure from the store aborts and propagates so
// the orchestrator can retry the entire envelope.
func (s *Service) ApplyGraph(ctx context.Context, g *identified.IdentifiedGraph) (*ApplyResult, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	resultMu := newResultCollector(result)

	nodeTypeIndex := make(map[uid.Uid]string, len(g.Nodes))
	for u, node := range g.Nodes {
		nodeTypeIndex[u] = node.NodeType
	}

	g2, gctx := errgroup.WithContext(ctx)
	g2.SetLimit(s.maxFanOut)

	for u, node := range g.Nodes {
		u, node := u, node
		g2.Go(func() error {
			err := s.applyNode(gctx, u, node)
			return resultMu.recordNode(u, err)
		})
	}

	for _, e := range g.Edges {
		e := e
		g2.Go(func() error {
			err := s.applyEdge(gctx, e, nodeTypeIndex)
			return resultMu.recordEdge(e, err)
		})
	}

	if err := g2.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) applyNode(ctx context.Context, u uid.Uid, node *identified.IdentifiedNode) error {
	if err := s.nodes.UpsertNodeType(ctx, s.tenantID, u, node.NodeType); err != nil {
		return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: writing node type for uid %s", u))
	}

	for name, prop := range node.Properties {
		table, ok := propertyTableFor(prop.Tag)
		if !ok {
			return errors.Persistentf("mutation: unroutable property tag %s on uid %s", prop.Tag, u)
		}
		var err error
		switch prop.Tag {
		case graphdesc.ImmutableString, graphdesc.ImmutableI64, graphdesc.ImmutableU64:
			err = s.nodes.UpsertImmutable(ctx, s.tenantID, u, table, name, prop)
		case graphdesc.IncrementOnlyI64, graphdesc.IncrementOnlyU64:
			err = s.nodes.UpsertMax(ctx, s.tenantID, u, table, name, prop)
		case graphdesc.DecrementOnlyI64, graphdesc.DecrementOnlyU64:
			err = s.nodes.UpsertMin(ctx, s.tenantID, u, table, name, prop)
		}
		if err != nil {
			return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: writing property %q on uid %s", name, u))
		}
	}
	return nil
}

func (s *Service) applyEdge(ctx context.Context, e identified.IdentifiedEdge, nodeTypeIndex map[uid.Uid]string) error {
	if err := s.edges.UpsertEdge(ctx, s.tenantID, e.From, e.EdgeName, e.To); err != nil {
		return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: writing forward edge %q", e.EdgeName))
	}

	nodeType, ok := nodeTypeIndex[e.From]
	if !ok {
		return errors.Persistentf("mutation: unknown node type for uid %s", e.From)
	}
	edgeSchema, err := s.schemas.GetEdgeSchema(ctx, s.tenantID, nodeType, currentSchemaVersion, e.EdgeName)
	if err != nil {
		return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: resolving reverse edge for %q", e.EdgeName))
	}
	if err := s.edges.UpsertEdge(ctx, s.tenantID, e.From, e.EdgeName, e.To); err != nil {
		return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: writing forward edge %q", e.EdgeName))
	}
	if err := s.edges.UpsertEdge(ctx, s.tenantID, e.To, edgeSchema.ReverseEdgeName, e.From); err != nil {
		return errors.Wrap(err, errors.ClassOf(err), fmt.Sprintf("mutation: writing reverse edge %q", edgeSchema.ReverseEdgeName))
	}
	return nil
}

// currentSchemaVersion is the only schema version the mutation service
// writes against today; multi-version migration is out of scope.
const currentSchemaVersion = 1

func propertyTableFor(tag graphdesc.PropertyTag) (string, bool) {
	switch tag {
	case graphdesc.ImmutableString:
		return "node_property_immutable_string", true
	case graphdesc.ImmutableI64:
		return "node_property_immutable_i64", true
	case graphdesc.ImmutableU64:
		return "node_property_immutable_u64", true
	case graphdesc.IncrementOnlyI64:
		return "node_property_max_i64", true
	case graphdesc.IncrementOnlyU64:
		return "node_property_max_u64", true
	case graphdesc.DecrementOnlyI64:
		return "node_property_min_i64", true
	case graphdesc.DecrementOnlyU64:
		return "node_property_min_u64", true
	default:
		return "", false
	}
}
