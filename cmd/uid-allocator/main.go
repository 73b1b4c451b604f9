// Command uid-allocator serves Component C (spec §4.C): batched per-tenant
// uid allocation over a counters table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/transport/grpcserver"
	"github.com/grapl-security/grapl-core/internal/uidalloc"
)

const serviceName = "uid-allocator"

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

	pool, err := store.Connect(ctx, serviceName, cfg.CounterDB.DSN())
	if err != nil {
		log.Error("failed to connect to counter db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.EnsureCounterSchema(ctx, pool); err != nil {
		log.Error("failed to provision counter schema", "error", err)
		os.Exit(1)
	}

	allocator := uidalloc.NewPostgresAllocator(pool.Raw())
	_ = allocator // registered against UidAllocator.{AllocateIds,CreateTenantKeyspace} once proto/grapl.proto is compiled

	srv := grpcserver.New(logger)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	log.Info("uid-allocator starting", "bind_address", cfg.BindAddress)
	if err := srv.Serve(ctx, cfg.BindAddress); err != nil {
		log.Error("grpc server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("uid-allocator stopped")
}
