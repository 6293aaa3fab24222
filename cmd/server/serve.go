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


package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/opentrusty/tenantdir/internal/config"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	transportGRPC "github.com/opentrusty/tenantdir/internal/transport/grpc"
	transportHTTP "github.com/opentrusty/tenantdir/internal/transport/http"
)

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting tenantdir",
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("store", cfg.Store.Driver),
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	if err := a.bootstrap(ctx, cfg.Bootstrap); err != nil {
		return err
	}

	authenticator := transportHTTP.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.Disabled)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()

	handler := transportHTTP.NewHandler(
		a.tenants,
		a.accounts,
		a.roles,
		a.rolePerms,
		a.userRoles,
		cfg.Auth.EnforcePermissions,
	)
	router := transportHTTP.NewRouter(handler, transportHTTP.RouterConfig{
		Authenticator:     authenticator,
		Resolver:          a.resolver,
		RateLimiter:       rateLimiter,
		AllowTenantHeader: cfg.Auth.AllowTenantHeader,
		Production:        !cfg.Auth.Disabled,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var grpcServer *transportGRPC.Server
	if cfg.GRPC.Enabled {
		grpcServer = transportGRPC.NewServer(
			transportGRPC.NewTenantInterceptor(a.resolver, authenticator, cfg.Auth.AllowTenantHeader),
			transportGRPC.NewDirectoryServer(a.roles, a.rolePerms, a.userRoles),
		)
		lis, err := net.Listen("tcp", cfg.GRPCAddr())
		if err != nil {
			_ = server.Close()
			return err
		}
		g.Go(func() error {
			return grpcServer.Serve(lis)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if grpcServer != nil {
			grpcServer.Shutdown(shutdownCtx)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", logger.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
