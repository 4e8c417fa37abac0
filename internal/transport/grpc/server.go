// Package grpcx serves grpc.health.v1.Health for the daemon.
package grpcx

import (
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service entry of the daemon.
const ServiceName = "glasschat.chatd"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewServer starts NOT_SERVING until SetServing(true).
func NewServer(timeout time.Duration) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(timeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	h := health.NewServer()
	healthpb.RegisterHealthServer(g, h)
	reflection.Register(g)

	s := &Server{grpc: g, health: h}
	s.SetServing(false)
	return s
}

func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop reports NOT_SERVING, then drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) Stop() {
	s.grpc.Stop()
}
