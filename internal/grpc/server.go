package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/logging"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthListMethod  = "/grpc.health.v1.Health/List"

	// RecordsService reports SERVING once at least one record is loaded.
	RecordsService = "certificates.records"
)

// Server hosts the standard health service and the admin service. The
// records status follows the ingestion pipeline through RecordsChanged.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    logging.Logger
}

// New builds the server. Every unary method except the health checks
// requires a bearer token; the admin methods also require the admin role.
func New(gw *auth.Gateway, records RecordCounter, reloader Reloader, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(gw, healthCheckMethod, healthListMethod)))
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RecordsService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	registerAdmin(srv, &AdminServer{gw: gw, records: records, reloader: reloader})
	return &Server{srv: srv, health: hs, log: log.With("component", "grpc")}
}

// RecordsChanged updates the records service status.
func (s *Server) RecordsChanged(count int) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if count > 0 {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(RecordsService, st)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Start listens on addr, serves in the background and returns a shutdown function.
func (s *Server) Start(addr string) (func(context.Context) error, error) {
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.log.Info(context.Background(), "grpc listening", "addr", lis.Addr().String())

	go func() {
		if err := s.srv.Serve(lis); err != nil {
			s.log.Error(context.Background(), "grpc serve", "err", err)
		}
	}()

	return func(ctx context.Context) error {
		s.health.Shutdown()
		done := make(chan struct{})
		go func() { s.srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			s.srv.Stop()
			return ctx.Err()
		}
	}, nil
}
