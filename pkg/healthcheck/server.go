// Package healthcheck serves grpc.health.v1 and keeps the status in step with
// a dependency probe.
package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by docstore.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	log      *slog.Logger
	probe    Pinger
	health   *health.Server
	interval time.Duration
	services []string
}

// New registers the overall ("") status plus one entry per service name.
func New(log *slog.Logger, probe Pinger, interval time.Duration, services ...string) *Server {
	return &Server{
		log:      log,
		probe:    probe,
		health:   health.NewServer(),
		interval: interval,
		services: append([]string{""}, services...),
	}
}

func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
}

// Check probes once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.probe.Ping(ctx); err != nil {
		s.log.Warn("health probe failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, svc := range s.services {
		s.health.SetServingStatus(svc, status)
	}
	return status
}

// Run probes every interval until ctx is done, then marks everything
// NOT_SERVING.
func (s *Server) Run(ctx context.Context) {
	s.Check(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Serve starts a gRPC server on lis and stops it gracefully when ctx ends.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	s.Register(gs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	s.log.Info("grpc listening", "addr", lis.Addr().String())
	return gs.Serve(lis)
}
