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
	"log/slog"
	"sort"
	"time"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// UserRoleService maintains the user↔role edges of the current tenant and
// answers what a principal may do there.
type UserRoleService struct {
	store       Store
	accounts    identity.AccountRepository
	guard       tenant.Guard
	auditLogger audit.Logger
	opts        options
}

// NewUserRoleService creates a new user role service
func NewUserRoleService(st Store, accounts identity.AccountRepository, guard tenant.Guard, auditLogger audit.Logger, opts ...Option) *UserRoleService {
	if guard == nil {
		guard = tenant.AlwaysWritable
	}
	return &UserRoleService{
		store:       st,
		accounts:    accounts,
		guard:       guard,
		auditLogger: auditLogger,
		opts:        buildOptions(opts),
	}
}

// Grant assigns a role to a user; both must belong to the current tenant.
// Granting an existing pair returns the stored assignment with created=false.
func (s *UserRoleService) Grant(ctx context.Context, userID, roleID string) (*UserRoleAssignment, bool, error) {
	const op = "authz.GrantRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}

	var (
		assignment *UserRoleAssignment
		created    bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		user, err := s.getAccount(ctx, scope, userID)
		if err != nil {
			return err
		}
		role, err := getRole(ctx, s.store, scope, roleID)
		if err != nil {
			return err
		}
		assignment, created, err = s.grant(ctx, scope, user, role)
		return err
	})
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}

	s.opts.observer.RecordGrant(ctx, EdgeUserRole, created)
	if created {
		invalidate(ctx, s.opts.cache, scope)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleAssigned,
			TenantID: scope.TenantID(),
			Resource: assignment.RoleID,
			Metadata: map[string]any{"user_id": assignment.UserAccountID},
		})
	}
	return assignment, created, nil
}

func (s *UserRoleService) grant(ctx context.Context, scope tenant.Scope, user *identity.UserAccount, role *Role) (*UserRoleAssignment, bool, error) {
	repo := s.store.UserRoles()
	existing, err := repo.Get(ctx, scope, user.ID, role.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrAssignmentNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	a := &UserRoleAssignment{
		ID:            id.NewUUIDv7(),
		TenantID:      scope.TenantID(),
		UserAccountID: user.ID,
		RoleID:        role.ID,
		AssignedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, scope, a); err != nil {
		if !errors.Is(err, ErrAssignmentAlreadyExists) {
			return nil, false, err
		}
		existing, err := repo.Get(ctx, scope, user.ID, role.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return a, true, nil
}

// Revoke removes a role from a user of the current tenant and reports whether
// an assignment was removed.
func (s *UserRoleService) Revoke(ctx context.Context, userID, roleID string) (bool, error) {
	const op = "authz.RevokeRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return false, errs.Wrap(op, err)
	}

	var removed bool
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		user, err := s.getAccount(ctx, scope, userID)
		if err != nil {
			return err
		}
		roleID, ok := canonical(roleID)
		if !ok {
			return nil
		}
		removed, err = s.store.UserRoles().Delete(ctx, scope, user.ID, roleID)
		return err
	})
	if err != nil {
		return false, errs.Wrap(op, err)
	}

	s.opts.observer.RecordRevoke(ctx, EdgeUserRole, removed)
	if removed {
		invalidate(ctx, s.opts.cache, scope)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleRevoked,
			TenantID: scope.TenantID(),
			Resource: roleID,
			Metadata: map[string]any{"user_id": userID},
		})
	}
	return removed, nil
}

// ListRolesForUser returns the roles assigned to a user of the current tenant.
func (s *UserRoleService) ListRolesForUser(ctx context.Context, userID string) ([]*Role, error) {
	const op = "authz.ListUserRoles"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	user, err := s.getAccount(ctx, scope, userID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	roles, err := s.rolesOf(ctx, scope, user.ID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return roles, nil
}

// ListPermissionsForUser returns the union of the permissions of every role
// assigned to the user, sorted by name. Inactive accounts hold none.
func (s *UserRoleService) ListPermissionsForUser(ctx context.Context, userID string) ([]Permission, error) {
	const op = "authz.ListUserPermissions"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	user, err := s.getAccount(ctx, scope, userID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	if !user.IsActive {
		return []Permission{}, nil
	}

	cached, gen, hit, cacheErr := s.opts.cache.Get(ctx, scope, user.ID)
	if cacheErr != nil {
		slog.WarnContext(ctx, "permission cache read failed",
			slog.String("tenant_id", scope.TenantID()),
			slog.String("error", cacheErr.Error()),
		)
	}
	s.opts.observer.RecordCacheLookup(ctx, hit)
	if hit {
		return cached, nil
	}

	perms, err := s.effectivePermissions(ctx, scope, user.ID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	// Without a generation there is nothing safe to write under.
	if cacheErr != nil {
		return perms, nil
	}
	if err := s.opts.cache.Set(ctx, scope, user.ID, gen, perms); err != nil {
		slog.WarnContext(ctx, "permission cache write failed",
			slog.String("tenant_id", scope.TenantID()),
			slog.String("error", err.Error()),
		)
	}
	return perms, nil
}

// HasPermission reports whether the user holds the named permission in the
// current tenant through any assigned role.
func (s *UserRoleService) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	perms, err := s.ListPermissionsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Name == permission {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserRoleService) rolesOf(ctx context.Context, scope tenant.Scope, userID string) ([]*Role, error) {
	assignments, err := s.store.UserRoles().ListByUser(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.RoleID)
	}
	return s.store.Roles().ListByIDs(ctx, scope, ids)
}

func (s *UserRoleService) effectivePermissions(ctx context.Context, scope tenant.Scope, userID string) ([]Permission, error) {
	roles, err := s.rolesOf(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	roleIDs := make([]string, 0, len(roles))
	for _, r := range roles {
		roleIDs = append(roleIDs, r.ID)
	}
	assignments, err := s.store.RolePermissions().ListByRoles(ctx, scope, roleIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(assignments))
	permIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !seen[a.PermissionID] {
			seen[a.PermissionID] = true
			permIDs = append(permIDs, a.PermissionID)
		}
	}
	ps, err := s.store.Permissions().ListByIDs(ctx, permIDs)
	if err != nil {
		return nil, err
	}

	perms := make([]Permission, 0, len(ps))
	for _, p := range ps {
		perms = append(perms, *p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (s *UserRoleService) getAccount(ctx context.Context, scope tenant.Scope, userID string) (*identity.UserAccount, error) {
	userID, ok := canonical(userID)
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	return s.accounts.GetByID(ctx, scope, userID)
}
