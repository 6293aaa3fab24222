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

package tenant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/store"
	"github.com/opentrusty/tenantdir/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SystemRoleProvisioner creates the built-in roles of a new tenant.
type SystemRoleProvisioner interface {
	ProvisionSystemRoles(ctx context.Context, scope Scope) error
}

// Guard decides whether tenant-scoped writes may proceed.
type Guard interface {
	Writable(ctx context.Context, scope Scope) error
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, scope Scope) error

// Writable implements Guard.
func (f GuardFunc) Writable(ctx context.Context, scope Scope) error { return f(ctx, scope) }

// AlwaysWritable never blocks writes.
var AlwaysWritable Guard = GuardFunc(func(context.Context, Scope) error { return nil })

// CreateInput is the payload of Service.Create.
type CreateInput struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

// UpdateInput is the payload of Service.Update. Empty fields are left unchanged.
type UpdateInput struct {
	Name   string `json:"name" validate:"omitempty,notblank,max=100"`
	Status Status `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`
}

// Service provides tenant administration
type Service struct {
	repo                 Repository
	tx                   store.TxManager
	provisioner          SystemRoleProvisioner
	auditLogger          audit.Logger
	blockSuspendedWrites bool
}

// Option configures a Service.
type Option func(*Service)

// WithSuspendedWriteBlock makes Writable refuse writes for SUSPENDED tenants.
func WithSuspendedWriteBlock(enabled bool) Option {
	return func(s *Service) { s.blockSuspendedWrites = enabled }
}

// NewService creates a new tenant service
func NewService(repo Repository, tx store.TxManager, provisioner SystemRoleProvisioner, auditLogger audit.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		tx:          tx,
		provisioner: provisioner,
		auditLogger: auditLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a tenant and provisions its system roles in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Tenant, error) {
	const op = "tenant.Create"
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &Tenant{
		ID:        id.NewUUIDv7(),
		Name:      in.Name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
		if s.provisioner == nil {
			return nil
		}
		return s.provisioner.ProvisionSystemRoles(ctx, Scope{tenantID: t.ID})
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	slog.InfoContext(ctx, "tenant created", slog.String("tenant_id", t.ID), slog.String("name", t.Name))
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		Resource: t.Name,
	})
	return t, nil
}

// Get retrieves a tenant by ID
func (s *Service) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	tenantID, err := lookupID("tenant.Get", tenantID)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, errs.Wrap("tenant.Get", err)
	}
	return t, nil
}

// List lists tenants with pagination
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	ts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, errs.Wrap("tenant.List", err)
	}
	return ts, nil
}

// Update renames a tenant or changes its status.
func (s *Service) Update(ctx context.Context, tenantID string, in UpdateInput) (*Tenant, error) {
	const op = "tenant.Update"
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	tenantID, err := lookupID(op, tenantID)
	if err != nil {
		return nil, err
	}

	var updated *Tenant
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if in.Name != "" {
			t.Name = in.Name
		}
		if in.Status != "" {
			t.Status = in.Status
		}
		t.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantUpdated,
		TenantID: updated.ID,
		Resource: updated.Name,
		Metadata: map[string]any{"status": string(updated.Status)},
	})
	return updated, nil
}

// Delete removes a tenant together with everything it owns.
func (s *Service) Delete(ctx context.Context, tenantID string) error {
	const op = "tenant.Delete"
	tenantID, err := lookupID(op, tenantID)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, tenantID)
	})
	if err != nil {
		return errs.Wrap(op, err)
	}

	slog.InfoContext(ctx, "tenant deleted", slog.String("tenant_id", tenantID))
	s.auditLogger.Log(ctx, audit.Event{Type: audit.TypeTenantDeleted, TenantID: tenantID})
	return nil
}

// Writable implements Guard. With the suspended-write block disabled every
// tenant is writable and no lookup happens.
func (s *Service) Writable(ctx context.Context, scope Scope) error {
	if !s.blockSuspendedWrites {
		return nil
	}
	if err := scope.Check("tenant.Writable"); err != nil {
		return err
	}
	t, err := s.repo.GetByID(ctx, scope.TenantID())
	if err != nil {
		return errs.Wrap("tenant.Writable", err)
	}
	if t.Status == StatusSuspended {
		return errs.Wrap("tenant.Writable", ErrTenantSuspended)
	}
	return nil
}

// lookupID canonicalises a tenant id. A malformed id cannot name any tenant.
func lookupID(op, tenantID string) (string, error) {
	norm, err := id.Normalize(tenantID)
	if err != nil {
		return "", errs.Wrap(op, ErrTenantNotFound)
	}
	return norm, nil
}
