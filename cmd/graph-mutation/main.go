// Command graph-mutation serves Component E (spec §4.E): idempotent,
// bounded-concurrency application of an IdentifiedGraph to the store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/mutation"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/transport/grpcserver"
)

const serviceName = "graph-mutation"

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

	pool, err := store.Connect(ctx, serviceName, cfg.GraphDB.DSN())
	if err != nil {
		log.Error("failed to connect to graph db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.EnsureGraphSchema(ctx, pool); err != nil {
		log.Error("failed to provision graph schema", "error", err)
		os.Exit(1)
	}

	nodes := mutation.NewPostgresNodeStore(pool.Raw())
	edges := mutation.NewPostgresEdgeStore(pool.Raw())
	schemaManager := schema.NewPostgresManager(pool.Raw())

	// A single Service is safe to share across concurrent RPC handlers —
	// ApplyGraph builds its node-type index fresh per call (spec §4.E).
	service := mutation.NewService("", nodes, edges, schemaManager, cfg.MaxMutationFanOut)
	_ = service // registered against GraphMutation.{CreateNode,SetNodeProperty,CreateEdge} once proto/grapl.proto is compiled

	srv := grpcserver.New(logger)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	log.Info("graph-mutation starting", "bind_address", cfg.BindAddress, "max_fan_out", cfg.MaxMutationFanOut)
	if err := srv.Serve(ctx, cfg.BindAddress); err != nil {
		log.Error("grpc server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("graph-mutation stopped")
}
