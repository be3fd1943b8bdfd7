// Package health exposes the standard gRPC health service so orchestrators and
// grpc-health-probe can check the process.
package health

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	service    string
	check      Check
	interval   time.Duration
}

// NewServer registers the health and reflection services. service is the name reported
// next to the overall ("") status.
func NewServer(service string, check Check, interval time.Duration) *Server {
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		service:    service,
		check:      check,
		interval:   interval,
	}
}

// Serve blocks until the listener fails or Stop is called. Statuses are refreshed from
// the check in the background until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go s.watch(ctx)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.check(checkCtx)
		cancel()
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).Msg("health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}
