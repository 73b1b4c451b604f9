// Command pipeline-orchestrator serves Component H (spec §4.H): pulls
// generator-stage envelopes off the plugin work queue (G) and drives each
// through generator → identity (B) → mutation (E) → the analyzer stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/identity"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/mutation"
	"github.com/grapl-security/grapl-core/internal/pipeline"
	"github.com/grapl-security/grapl-core/internal/queue"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/transport/grpcserver"
	"github.com/grapl-security/grapl-core/internal/uidalloc"
)

const serviceName = "pipeline-orchestrator"

// pollInterval is how often an idle poller checks the queue for new work
// when Get returns nothing, instead of busy-looping.
const pollInterval = 200 * time.Millisecond

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		logging.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(logging.Config{JSONFormat: true})
	log := logging.Component(logger, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graphPool, err := store.Connect(ctx, serviceName, cfg.GraphDB.DSN())
	if err != nil {
		log.Error("failed to connect to graph db", "error", err)
		os.Exit(1)
	}
	defer graphPool.Close()

	counterPool, err := store.Connect(ctx, serviceName, cfg.CounterDB.DSN())
	if err != nil {
		log.Error("failed to connect to counter db", "error", err)
		os.Exit(1)
	}
	defer counterPool.Close()

	queueDB, err := sqlx.ConnectContext(ctx, "postgres", cfg.PluginQueueDB.DSN())
	if err != nil {
		log.Error("failed to open sqlx connection to plugin queue db", "error", err)
		os.Exit(1)
	}
	defer queueDB.Close()

	if err := store.EnsureGraphSchema(ctx, graphPool); err != nil {
		log.Error("failed to provision graph schema", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureCounterSchema(ctx, counterPool); err != nil {
		log.Error("failed to provision counter schema", "error", err)
		os.Exit(1)
	}
	queuePool, err := store.Connect(ctx, serviceName, cfg.PluginQueueDB.DSN())
	if err != nil {
		log.Error("failed to connect to plugin queue db", "error", err)
		os.Exit(1)
	}
	defer queuePool.Close()
	if err := store.EnsurePluginQueueSchema(ctx, queuePool); err != nil {
		log.Error("failed to provision plugin queue schema", "error", err)
		os.Exit(1)
	}

	tenantID := cfg.ServiceName // single-tenant composition root; a multi-tenant
	// deployment constructs one of each per-tenant component below, keyed by
	// tenant_id, in the RPC/poll dispatch layer (see DESIGN.md Open Questions).

	allocator := uidalloc.NewBatchingAllocator(uidalloc.NewPostgresAllocator(counterPool.Raw()), tenantID, cfg.UidPreallocation)
	sessionStore := identity.NewPostgresSessionStore(graphPool.Raw())
	staticStore := identity.NewPostgresStaticStore(graphPool.Raw())
	assets := identity.NewStaticAssetResolver(staticStore, allocator.Next)
	retryCache := identity.NoopRetryCache{}
	resolver := identity.NewResolver(tenantID, sessionStore, staticStore, assets, retryCache, allocator.Next, cfg.MaxCASRetries)

	nodes := mutation.NewPostgresNodeStore(graphPool.Raw())
	edges := mutation.NewPostgresEdgeStore(graphPool.Raw())
	schemaManager := schema.NewPostgresManager(graphPool.Raw())
	mutator := mutation.NewService(tenantID, nodes, edges, schemaManager, cfg.MaxMutationFanOut)

	q := queue.NewPostgresQueue(queueDB)

	// No generator plugins or analyzer stream are wired in this entrypoint
	// (spec §6: both are external processes reached over the plugin work
	// queue); an empty registry means every envelope terminates as
	// PersistentErr until a deployment registers its own plugins.
	generators := pipeline.StaticGeneratorRegistry{}
	orchestrator := pipeline.NewOrchestrator(generators, resolver, mutator, nil, q, logger)

	srv := grpcserver.New(logger)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	go pollLoop(ctx, log, q, orchestrator, tenantID)

	log.Info("pipeline-orchestrator starting", "bind_address", cfg.BindAddress)
	if err := srv.Serve(ctx, cfg.BindAddress); err != nil {
		log.Error("grpc server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline-orchestrator stopped")
}

// pollLoop claims one message at a time from the queue under plugin id
// "generator" for tenantID and drives it through the orchestrator,
// acking success or letting the orchestrator's own reduce() path handle
// failure re-enqueueing (spec §4.H, §7).
func pollLoop(ctx context.Context, log interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}, q queue.Queue, orchestrator *pipeline.Orchestrator, tenantID string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, ok, err := q.Get(ctx, tenantID, "generator")
			if err != nil {
				log.Error("failed to poll plugin work queue", "error", err)
				continue
			}
			if !ok {
				continue
			}

			env := pipeline.Envelope{
				TenantID:      msg.TenantID,
				TraceID:       msg.TraceID,
				EventSourceID: msg.EventSourceID,
				ExecutionKey:  msg.ExecutionKey,
				RetryCount:    msg.TryCount,
				Payload:       pipeline.RawLog{Bytes: msg.PipelineMessage},
			}

			result, err := orchestrator.ProcessEnvelope(ctx, env)
			if err != nil {
				log.Error("orchestrator failed processing envelope", "error", err, "execution_key", msg.ExecutionKey)
				continue
			}
			switch result.Outcome {
			case pipeline.OutcomeOk, pipeline.OutcomePartialOk:
				if ackErr := q.AckSuccess(ctx, msg.ExecutionKey, nil); ackErr != nil {
					log.Error("failed to ack successful envelope", "error", ackErr, "execution_key", msg.ExecutionKey)
				}
			case pipeline.OutcomePersistentErr:
				// Terminate rather than retry: reduce() already classified this
				// as non-retryable, so AckFailure's try-count bookkeeping is
				// only here to eventually land the row in Status=Failed.
				if ackErr := q.AckFailure(ctx, msg.ExecutionKey); ackErr != nil {
					log.Error("failed to ack terminated envelope", "error", ackErr, "execution_key", msg.ExecutionKey)
				}
			case pipeline.OutcomeTransientErr:
				// reduce() already called AckFailure itself for the re-enqueue.
			}
		}
	}
}
