package pipeline

import (
	"context"
	"log/slog"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/identified"
	"github.com/grapl-security/grapl-core/internal/identity"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/mutation"
	"github.com/grapl-security/grapl-core/internal/queue"
)

// GeneratorRegistry resolves the generator plugin that owns an
// event_source_id (spec §4.H: "invokes the generator plugin for the
// envelope's event_source_id").
type GeneratorRegistry interface {
	GeneratorFor(eventSourceID string) (GeneratorPlugin, bool)
}

// StaticGeneratorRegistry is a GeneratorRegistry backed by a fixed map,
// sufficient for a single process wiring every generator it's configured
// with at startup.
type StaticGeneratorRegistry map[string]GeneratorPlugin

func (r StaticGeneratorRegistry) GeneratorFor(eventSourceID string) (GeneratorPlugin, bool) {
	g, ok := r[eventSourceID]
	return g, ok
}

// Result summarizes one envelope's pass through the pipeline, mirroring the
// shape of an ingestion result report: what ran, what it produced, how it
// concluded.
type Result struct {
	TenantID      string
	EventSourceID string
	NodesWritten  int
	EdgesWritten  int
	PartialErrors []error
	// Outcome is one of OutcomeOk, OutcomePartialOk, OutcomeTransientErr, OutcomePersistentErr
	Outcome Outcome
}

// Outcome is the orchestrator's per-envelope reduction (spec §7
// "Propagation policy").
type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomePartialOk
	OutcomeTransientErr
	OutcomePersistentErr
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "Ok"
	case OutcomePartialOk:
		return "PartialOk"
	case OutcomeTransientErr:
		return "TransientErr"
	case OutcomePersistentErr:
		return "PersistentErr"
	default:
		return "Unknown"
	}
}

// Orchestrator coordinates one envelope through generator → B → E → the
// analyzer stream (spec §4.H), grounded on the staged, errgroup-fanned-out
// shape of this repo's other multi-phase coordinators but driving this
// pipeline's own stage contract instead.
type Orchestrator struct {
	generators GeneratorRegistry
	resolver   *identity.Resolver
	mutator    *mutation.Service
	stream     AnalyzerStream
	retryQueue queue.Queue
	logger     *slog.Logger
}

func NewOrchestrator(
	generators GeneratorRegistry,
	resolver *identity.Resolver,
	mutator *mutation.Service,
	stream AnalyzerStream,
	retryQueue queue.Queue,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		generators: generators,
		resolver:   resolver,
		mutator:    mutator,
		stream:     stream,
		retryQueue: retryQueue,
		logger:     logging.Component(logger, "pipeline-orchestrator"),
	}
}

// ProcessEnvelope runs the full stage contract for one envelope (spec §4.H,
// §7): generator → identity resolution (B) → mutation (E) → analyzer
// stream publish. A transient failure at any stage re-enqueues the
// original envelope via G with an incremented retry count instead of
// propagating; a persistent failure terminates the envelope and is
// recorded on Result.
func (o *Orchestrator) ProcessEnvelope(ctx context.Context, env Envelope) (*Result, error) {
	log := logging.With(o.logger, logging.Envelope{
		TenantID:      env.TenantID,
		TraceID:       env.TraceID,
		EventSourceID: env.EventSourceID,
	})

	result := &Result{TenantID: env.TenantID, EventSourceID: env.EventSourceID}

	generated, err := o.runGenerator(ctx, env)
	if err != nil {
		return o.reduce(ctx, env, result, err, log)
	}

	identifiedGraph, err := o.resolver.ResolveGraph(ctx, generated.GraphDescription)
	if err != nil {
		return o.reduce(ctx, env, result, err, log)
	}

	applyResult, err := o.mutator.ApplyGraph(ctx, identifiedGraph)
	if err != nil {
		return o.reduce(ctx, env, result, err, log)
	}

	result.NodesWritten = applyResult.NodesWritten
	result.EdgesWritten = applyResult.EdgesWritten
	for _, fn := range applyResult.FailedNodes {
		result.PartialErrors = append(result.PartialErrors, fn.Err)
	}
	for _, fe := range applyResult.FailedEdges {
		result.PartialErrors = append(result.PartialErrors, fe.Err)
	}

	if pubErr := o.publish(ctx, env.TenantID, identifiedGraph); pubErr != nil {
		return o.reduce(ctx, env, result, pubErr, log)
	}

	if len(result.PartialErrors) > 0 {
		result.Outcome = OutcomePartialOk
		log.Warn("envelope completed with partial failures",
			"nodes_written", result.NodesWritten,
			"edges_written", result.EdgesWritten,
			"partial_failures", len(result.PartialErrors),
		)
	} else {
		result.Outcome = OutcomeOk
		log.Info("envelope processed",
			"nodes_written", result.NodesWritten,
			"edges_written", result.EdgesWritten,
		)
	}
	return result, nil
}

func (o *Orchestrator) runGenerator(ctx context.Context, env Envelope) (GeneratedGraph, error) {
	gen, ok := o.generators.GeneratorFor(env.EventSourceID)
	if !ok {
		return GeneratedGraph{}, errors.Persistentf("pipeline: no generator registered for event_source_id %q", env.EventSourceID)
	}
	return gen.RunGenerator(ctx, env.Payload)
}

func (o *Orchestrator) publish(ctx context.Context, tenantID string, g *identified.IdentifiedGraph) error {
	if o.stream == nil {
		return nil
	}
	return o.stream.Publish(ctx, tenantID, g)
}

// reduce applies spec §7's propagation policy: transient errors re-enqueue
// the original envelope via G with an incremented retry count; persistent
// (and unclassified) errors terminate the envelope.
func (o *Orchestrator) reduce(ctx context.Context, env Envelope, result *Result, err error, log *slog.Logger) (*Result, error) {
	if errors.IsRetryable(err) {
		result.Outcome = OutcomeTransientErr
		result.PartialErrors = append(result.PartialErrors, err)
		log.Warn("transient stage failure, re-enqueueing envelope", "error", err, "retry_count", env.RetryCount+1)
		if o.retryQueue != nil && env.ExecutionKey != "" {
			if ackErr := o.retryQueue.AckFailure(ctx, env.ExecutionKey); ackErr != nil {
				return result, ackErr
			}
		}
		return result, nil
	}

	result.Outcome = OutcomePersistentErr
	result.PartialErrors = append(result.PartialErrors, err)
	log.Error("envelope terminated", "error", err)
	return result, nil
}
