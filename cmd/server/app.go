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
	"fmt"
	"log/slog"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/authz"
	redisCache "github.com/opentrusty/tenantdir/internal/cache/redis"
	"github.com/opentrusty/tenantdir/internal/config"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/observability/metrics"
	"github.com/opentrusty/tenantdir/internal/observability/tracing"
	"github.com/opentrusty/tenantdir/internal/store/memory"
	"github.com/opentrusty/tenantdir/internal/store/postgres"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// directoryStore is the persistence surface the process needs; both the
// postgres and in-memory stores provide it.
type directoryStore interface {
	authz.Store
	Tenants() tenant.Repository
	Accounts() identity.AccountRepository
}

// app holds the wired directory services.
type app struct {
	store     directoryStore
	tracer    *tracing.Tracer
	directory *metrics.Directory
	resolver  *tenant.Resolver

	tenants   *tenant.Service
	accounts  *identity.Service
	roles     *authz.RoleService
	rolePerms *authz.RolePermissionService
	userRoles *authz.UserRoleService

	closers []func(context.Context)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ready := false
	defer func() {
		if !ready {
			a.Close(ctx)
		}
	}()

	// Initialize tracer
	var err error
	a.tracer, err = tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := a.tracer.Shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", logger.Error(err))
		}
	})

	// Initialize meter
	meter := metrics.New(metrics.Config{Enabled: cfg.Observability.MetricsEnabled}, cfg.Observability.ServiceName)
	a.directory, err = metrics.NewDirectory(meter)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	// Initialize store
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) { db.Close() })
		if cfg.Database.MigrateOnStart {
			if err := migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		a.store = postgres.NewStore(db)
	case config.DriverMemory:
		st, err := memory.New()
		if err != nil {
			return nil, fmt.Errorf("initialize memory store: %w", err)
		}
		slog.Warn("using in-memory store; data is lost on exit")
		a.store = st
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// Seed the global permission catalog
	if err := authz.Bootstrap(ctx, a.store, authz.PermissionCatalog); err != nil {
		return nil, fmt.Errorf("seed permission catalog: %w", err)
	}

	// Permission cache
	var cache authz.PermissionCache = authz.NopCache{}
	if cfg.Redis.Addr != "" {
		client, err := redisCache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) {
			if err := client.Close(); err != nil {
				slog.Warn("redis close failed", logger.Error(err))
			}
		})
		cache = redisCache.NewPermissionCache(client, cfg.Redis.TTL)
		slog.Info("permission cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// Initialize services
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	opts := []authz.Option{authz.WithCache(cache), authz.WithObserver(a.directory)}

	a.resolver = tenant.NewResolver(a.directory)
	a.tenants = tenant.NewService(
		a.store.Tenants(),
		a.store,
		authz.SystemRoleProvisioner{Store: a.store},
		auditLogger,
		tenant.WithSuspendedWriteBlock(cfg.Tenancy.BlockSuspendedWrites),
	)
	a.accounts = identity.NewService(a.store.Accounts(), a.store, passwordHasher, a.tenants, auditLogger)
	a.roles = authz.NewRoleService(a.store, a.tenants, auditLogger, opts...)
	a.rolePerms = authz.NewRolePermissionService(a.store, a.tenants, auditLogger, opts...)
	a.userRoles = authz.NewUserRoleService(a.store, a.store.Accounts(), a.tenants, auditLogger, opts...)

	ready = true
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("connected to database")
	return db, nil
}

func migrate(ctx context.Context, db *postgres.DB) error {
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
