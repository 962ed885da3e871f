// Package grpc exposes the standard gRPC health service backed by the same
// dependency checks as GET /health/ready.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

const defaultProbeInterval = 10 * time.Second

// HealthServer publishes SERVING or NOT_SERVING for the whole server ("") and for
// the authz service name, refreshed from the HealthChecker.
type HealthServer struct {
	checker  *monitoring.HealthChecker
	status   *health.Server
	interval time.Duration
	log      logger.Logger
}

// NewHealthServer creates the server. It reports NOT_SERVING until the first probe.
func NewHealthServer(checker *monitoring.HealthChecker, interval time.Duration, log logger.Logger) *HealthServer {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	s := &HealthServer{
		checker:  checker,
		status:   health.NewServer(),
		interval: interval,
		log:      log.WithComponent("GRPCHealth"),
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe runs the checks once and publishes the result.
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	report := s.checker.Check(ctx)
	st := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn(ctx, "dependency check failed", logger.Any("checks", report.Checks))
	}
	s.set(st)
	return st
}

// Run probes on every tick until ctx is done, then marks the server as shutting down.
func (s *HealthServer) Run(ctx context.Context) {
	s.Probe(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.status.Shutdown()
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Register attaches the health service to srv.
func (s *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.status)
}

func (s *HealthServer) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.status.SetServingStatus("", st)
	s.status.SetServingStatus(constants.ServiceName, st)
}

// NewServer builds a gRPC server with the interceptor chain and the health service.
func NewServer(hs *HealthServer, tracing *monitoring.TracingManager, log logger.Logger) *grpc.Server {
	srv := grpc.NewServer(NewInterceptorChain(log, tracing).ChainUnaryInterceptors())
	hs.Register(srv)
	return srv
}
