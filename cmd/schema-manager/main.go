// Command schema-manager serves Component D (spec §4.D): per-(tenant,
// node_type, schema_version) edge reverse-name/cardinality lookups.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/transport/grpcserver"
)

const serviceName = "schema-manager"

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

	if err := store.EnsureSchemaManagerSchema(ctx, pool); err != nil {
		log.Error("failed to provision schema-manager schema", "error", err)
		os.Exit(1)
	}

	manager := schema.NewPostgresManager(pool.Raw())
	_ = manager // registered against GraphSchemaManager.{DeploySchema,GetEdgeSchema} once proto/grapl.proto is compiled

	srv := grpcserver.New(logger)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	log.Info("schema-manager starting", "bind_address", cfg.BindAddress)
	if err := srv.Serve(ctx, cfg.BindAddress); err != nil {
		log.Error("grpc server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("schema-manager stopped")
}
