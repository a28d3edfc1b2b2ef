// Package grpcserver exposes the standard gRPC health service for the etl
// service.
//
// Status follows the database: SERVING while the store answers pings,
// NOT_SERVING otherwise. Both the overall status ("") and ServiceName are
// reported.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"jobmate/etl-service/internal/logger"
)

// ServiceName is the name health checks may ask about.
const ServiceName = "jobmate.etl.EtlService"

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the grpc.Server and its health registry.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
	log    zerolog.Logger
}

// NewServer constructs a Server. Until the first probe both names are NOT_SERVING.
func NewServer(db Pinger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		db:     db,
		log:    logger.Component("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health listening")
	return s.grpc.Serve(lis)
}

// Probe pings the database once and updates the reported status.
func (s *Server) Probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.Ping(pctx); err != nil {
		s.log.Warn().Err(err).Msg("database ping failed, reporting NOT_SERVING")
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// Watch probes immediately and then every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Probe(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Probe(ctx)
		}
	}
}

// Stop marks everything NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
