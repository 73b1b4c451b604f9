// Package pipeline implements Component H, the orchestrator that drives one
// raw-log envelope through generator plugin → B (identity) → E (mutation) →
// the merged-graph stream for analyzers (spec §4.H).
package pipeline

import (
	"context"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identified"
)

// RawLog is the ingress envelope payload (spec §6): an opaque byte blob
// produced by whatever collector owns event_source_id.
type RawLog struct {
	Bytes []byte
}

// Envelope wraps RawLog with the routing and retry metadata the orchestrator
// and queue.Queue share (spec §6, §4.G).
type Envelope struct {
	TenantID      string
	TraceID       string
	EventSourceID string
	ExecutionKey  string
	RetryCount    int
	Payload       RawLog
}

// GeneratedGraph is the generator plugin's output (spec §6).
type GeneratedGraph struct {
	GraphDescription *graphdesc.GraphDescription
}

// GeneratorPlugin is the external generator contract (spec §6): turns one
// raw-log envelope into a GraphDescription. Implementations are looked up by
// event_source_id.
type GeneratorPlugin interface {
	RunGenerator(ctx context.Context, raw RawLog) (GeneratedGraph, error)
}

// LensRef names a lens-manager scope an analyzer hit should update
// (spec §6); lens-scope updates themselves are out of scope here.
type LensRef struct {
	Namespace string
	Name      string
}

// ExecutionHit is an analyzer match (spec §6).
type ExecutionHit struct {
	GraphView      *identified.IdentifiedGraph
	RootUid        uint64
	LensRefs       []LensRef
	AnalyzerName   string
	TimeOfMatch    int64
	IdempotencyKey string
	Score          float64
}

// ExecutionResult is the analyzer plugin's output (spec §6).
type ExecutionResult struct {
	ExecutionHit *ExecutionHit // nil if the analyzer did not match
}

// Update is the partial IdentifiedGraph delta handed to analyzers (spec §6).
type Update struct {
	Graph *identified.IdentifiedGraph
}

// AnalyzerPlugin is the external analyzer contract (spec §6).
type AnalyzerPlugin interface {
	RunAnalyzer(ctx context.Context, update Update) (ExecutionResult, error)
}

// AnalyzerStream publishes merged IdentifiedGraphs for analyzer consumption
// (spec §4.H: "publishes IdentifiedGraph on the merged-graph stream"). This
// is the orchestrator's side of a partitioned log transport, mirroring the
// ingress envelope's own delivery mechanism (spec §6).
type AnalyzerStream interface {
	Publish(ctx context.Context, tenantID string, graph *identified.IdentifiedGraph) error
}
