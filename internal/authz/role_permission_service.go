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

package authz

import (
	"context"
	"errors"
	"time"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// RolePermissionService maintains the role↔permission edges of the current
// tenant's authorization graph.
type RolePermissionService struct {
	store       Store
	guard       tenant.Guard
	auditLogger audit.Logger
	opts        options
}

// NewRolePermissionService creates a new role permission service
func NewRolePermissionService(st Store, guard tenant.Guard, auditLogger audit.Logger, opts ...Option) *RolePermissionService {
	if guard == nil {
		guard = tenant.AlwaysWritable
	}
	return &RolePermissionService{
		store:       st,
		guard:       guard,
		auditLogger: auditLogger,
		opts:        buildOptions(opts),
	}
}

// Grant attaches a permission to a role of the current tenant. Granting an
// existing pair returns the stored assignment unchanged with created=false.
func (s *RolePermissionService) Grant(ctx context.Context, roleID, permissionID string) (*RolePermissionAssignment, bool, error) {
	const op = "authz.GrantPermission"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}

	var (
		assignment *RolePermissionAssignment
		created    bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		role, err := getRole(ctx, s.store, scope, roleID)
		if err != nil {
			return err
		}
		perm, err := getPermission(ctx, s.store, permissionID)
		if err != nil {
			return err
		}
		assignment, created, err = grantRolePermission(ctx, s.store, scope, role, perm)
		return err
	})
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}

	s.opts.observer.RecordGrant(ctx, EdgeRolePermission, created)
	if created {
		invalidate(ctx, s.opts.cache, scope)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypePermissionGranted,
			TenantID: scope.TenantID(),
			Resource: assignment.RoleID,
			Metadata: map[string]any{"permission_id": assignment.PermissionID},
		})
	}
	return assignment, created, nil
}

// Revoke detaches a permission from a role of the current tenant and reports
// whether an assignment was removed. Revoking a pair that was never granted
// is not an error.
func (s *RolePermissionService) Revoke(ctx context.Context, roleID, permissionID string) (bool, error) {
	const op = "authz.RevokePermission"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return false, errs.Wrap(op, err)
	}

	var removed bool
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		role, err := getRole(ctx, s.store, scope, roleID)
		if err != nil {
			return err
		}
		permissionID, ok := canonical(permissionID)
		if !ok {
			return nil
		}
		removed, err = s.store.RolePermissions().Delete(ctx, scope, role.ID, permissionID)
		return err
	})
	if err != nil {
		return false, errs.Wrap(op, err)
	}

	s.opts.observer.RecordRevoke(ctx, EdgeRolePermission, removed)
	if removed {
		invalidate(ctx, s.opts.cache, scope)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypePermissionRevoked,
			TenantID: scope.TenantID(),
			Resource: roleID,
			Metadata: map[string]any{"permission_id": permissionID},
		})
	}
	return removed, nil
}

// ListForRole returns the permissions attached to a role of the current tenant.
func (s *RolePermissionService) ListForRole(ctx context.Context, roleID string) ([]*Permission, error) {
	const op = "authz.ListRolePermissions"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	role, err := getRole(ctx, s.store, scope, roleID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	assignments, err := s.store.RolePermissions().ListByRole(ctx, scope, role.ID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.PermissionID)
	}
	perms, err := s.store.Permissions().ListByIDs(ctx, ids)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return perms, nil
}

// ListAllGlobal returns the whole permission catalog. It needs no tenant.
func (s *RolePermissionService) ListAllGlobal(ctx context.Context) ([]*Permission, error) {
	perms, err := s.store.Permissions().List(ctx)
	if err != nil {
		return nil, errs.Wrap("authz.ListPermissions", err)
	}
	return perms, nil
}

func getPermission(ctx context.Context, st Store, permissionID string) (*Permission, error) {
	permissionID, ok := canonical(permissionID)
	if !ok {
		return nil, ErrPermissionNotFound
	}
	return st.Permissions().GetByID(ctx, permissionID)
}

// grantRolePermission inserts the role↔permission edge unless it exists. A
// concurrent insert of the same pair is absorbed by re-reading the winner.
func grantRolePermission(ctx context.Context, st Store, scope tenant.Scope, role *Role, perm *Permission) (*RolePermissionAssignment, bool, error) {
	repo := st.RolePermissions()
	existing, err := repo.Get(ctx, scope, role.ID, perm.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrAssignmentNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	a := &RolePermissionAssignment{
		ID:           id.NewUUIDv7(),
		TenantID:     role.TenantID,
		RoleID:       role.ID,
		PermissionID: perm.ID,
		AssignedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, scope, a); err != nil {
		if !errors.Is(err, ErrAssignmentAlreadyExists) {
			return nil, false, err
		}
		existing, err := repo.Get(ctx, scope, role.ID, perm.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return a, true, nil
}
