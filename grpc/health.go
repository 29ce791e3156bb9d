// Package grpc exposes the daemon's liveness over the standard gRPC health
// protocol and provides the matching probe client.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported by the daemon.
const ServiceName = "harvester.Daemon"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Listen binds addr and registers the health service. Both the daemon
// service and the server as a whole start NOT_SERVING.
func Listen(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &HealthServer{srv: srv, health: h, lis: lis}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *HealthServer) Addr() string {
	return s.lis.Addr().String()
}

// SetServing flips the reported status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Close stops the server and releases the listener. It is safe to call
// whether or not Serve ran.
func (s *HealthServer) Close() {
	s.health.Shutdown()
	s.srv.Stop()
	_ = s.lis.Close()
}

// Serve blocks until ctx is done, then reports NOT_SERVING and stops.
func (s *HealthServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()
	log.Info().Str("addr", s.Addr()).Msg("grpc health server listening")
	if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
