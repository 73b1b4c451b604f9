// Command plugin-queue serves Component G (spec §4.G): the durable
// per-(tenant_id, plugin_id) work queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/logging"
	"github.com/grapl-security/grapl-core/internal/queue"
	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/transport/grpcserver"
)

const serviceName = "plugin-queue"

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

	pool, err := store.Connect(ctx, serviceName, cfg.PluginQueueDB.DSN())
	if err != nil {
		log.Error("failed to connect to plugin queue db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.EnsurePluginQueueSchema(ctx, pool); err != nil {
		log.Error("failed to provision plugin queue schema", "error", err)
		os.Exit(1)
	}

	// PostgresQueue is built over sqlx/lib-pq rather than this process's own
	// pgx pool, matching the driver split the rest of the repo carries
	// between pgx (graph tables) and database/sql (queue tables).
	sqlxDB, err := sqlx.ConnectContext(ctx, "postgres", cfg.PluginQueueDB.DSN())
	if err != nil {
		log.Error("failed to open sqlx connection to plugin queue db", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	q := queue.NewPostgresQueue(sqlxDB)
	_ = q // registered against PluginWorkQueue.{PutExecuteGenerator,PutExecuteAnalyzer,
	// GetExecuteGenerator,GetExecuteAnalyzer,AcknowledgeGenerator,AcknowledgeAnalyzer}
	// once proto/grapl.proto is compiled

	srv := grpcserver.New(logger)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	log.Info("plugin-queue starting", "bind_address", cfg.BindAddress)
	if err := srv.Serve(ctx, cfg.BindAddress); err != nil {
		log.Error("grpc server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("plugin-queue stopped")
}
