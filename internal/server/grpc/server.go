// Package grpc serves the scan sync contract over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gutscan/internal/logging"
	"github.com/dmitrijs2005/gutscan/internal/server/models"
	"github.com/dmitrijs2005/gutscan/internal/syncapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SyncService is the business layer behind the handlers.
type SyncService interface {
	Submit(ctx context.Context, deviceID string, req syncapi.SubmitScanRequest) (string, error)
	Lookup(ctx context.Context, key string) (*models.Food, error)
}

// Limiter decides whether a device may submit now.
type Limiter interface {
	Allow(deviceID string) bool
}

type GRPCServer struct {
	address   string
	sync      SyncService
	limiter   Limiter
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

func NewGRPCServer(a string, l logging.Logger, svc SyncService, lim Limiter, secretKey string) *GRPCServer {
	if l == nil {
		l = logging.Nop()
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		sync:      svc,
		limiter:   lim,
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

// newServer builds the grpc.Server with interceptors and services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.recoverInterceptor,
		s.loggingInterceptor,
		s.accessTokenInterceptor,
		s.rateLimitInterceptor,
	))

	syncapi.RegisterScanSyncServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(syncapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

// Run serves on the configured address until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	<-stopped
	return nil
}
