package grpcserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger-service/internal/observability"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server exposes the standard gRPC health service. The overall status follows the database.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
	every  time.Duration
	log    *zap.Logger
}

func New(db Pinger, log *zap.Logger) *Server {
	hs := health.NewServer()
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{grpc: srv, health: hs, db: db, every: 10 * time.Second, log: log}
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	s.check(ctx)
	go s.watch(ctx)

	s.log.Info("grpc_listening", zap.String("addr", addr))
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.PingContext(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("health_db_ping_failed", zap.Error(err))
	}
	s.health.SetServingStatus("", status)
}
