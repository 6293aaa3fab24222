// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC service name of the directory, also reported by the
// health service.
const ServiceName = "tenantdir.v1.Directory"

// Server wraps a grpc.Server with its health service.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// NewServer builds a server exposing dir. Its unary chain resolves the
// tenant, translates errors, then refuses calls without a tenant except the
// global catalog and health checks. Additional options are appended.
func NewServer(tenants *TenantInterceptor, dir *DirectoryServer, opts ...grpc.ServerOption) *Server {
	base := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			tenants.Unary(),
			ErrorUnaryInterceptor(),
			RequireTenant(FullMethod("ListPermissions"), healthpb.Health_Check_FullMethodName),
		),
		grpc.ChainStreamInterceptor(tenants.Stream()),
	}
	srv := grpc.NewServer(append(base, opts...)...)

	srv.RegisterService(&directoryServiceDesc, dir)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{srv: srv, health: hs}
}

// Serve accepts connections on lis until Shutdown. A server shut down before
// Serve runs returns nil.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", slog.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown marks the service NOT_SERVING and drains in-flight calls. When ctx
// expires first the server is stopped hard.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
		<-done
	}
}
