// Package grpcserver wires the gRPC surface shared by every core service
// (spec §6): a standard healthcheck that reports Serving | NotServing |
// Unknown per spec §6, plus a Registrar through which a service can register
// its own RPCs.
package grpcserver

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/grapl-security/grapl-core/internal/logging"
)

// Server wraps a real *grpc.Server with the health-reporting convention
// every core service exposes.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New constructs a Server with the standard health service already
// registered. Callers register their own service implementations against
// Registrar before calling Serve.
func New(logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := grpc.NewServer(opts...)
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	return &Server{
		grpc:   s,
		health: h,
		logger: logging.Component(logger, "grpcserver"),
	}
}

// Registrar exposes the underlying *grpc.Server so a service main can call
// its own generated RegisterXServer function.
func (s *Server) Registrar() *grpc.Server {
	return s.grpc
}

// SetServingStatus reports name's health as Serving | NotServing | Unknown
// (spec §6). An empty name sets the overall server status.
func (s *Server) SetServingStatus(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(name, status)
}

// Serve blocks accepting connections on addr until ctx is cancelled or the
// listener fails.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("grpc server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc server shutting down")
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop immediately halts the server without waiting for in-flight RPCs.
func (s *Server) Stop() {
	s.grpc.Stop()
}
