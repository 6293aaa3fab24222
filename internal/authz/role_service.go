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
	"strings"
	"time"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/tenant"
	"github.com/opentrusty/tenantdir/internal/validation"
)

// RoleService manages the roles of the current tenant.
type RoleService struct {
	store       Store
	guard       tenant.Guard
	auditLogger audit.Logger
	opts        options
}

// NewRoleService creates a new role service
func NewRoleService(st Store, guard tenant.Guard, auditLogger audit.Logger, opts ...Option) *RoleService {
	if guard == nil {
		guard = tenant.AlwaysWritable
	}
	return &RoleService{
		store:       st,
		guard:       guard,
		auditLogger: auditLogger,
		opts:        buildOptions(opts),
	}
}

// Create adds a non-system role to the current tenant.
func (s *RoleService) Create(ctx context.Context, in RoleInput) (*Role, error) {
	const op = "authz.CreateRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	in, err = normalizeRoleInput(op, scope, in)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	role := &Role{
		ID:           id.NewUUIDv7(),
		TenantID:     scope.TenantID(),
		Name:         in.Name,
		Description:  in.Description,
		IsSystemRole: false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		return s.store.Roles().Create(ctx, scope, role)
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		TenantID: scope.TenantID(),
		Resource: role.ID,
		Metadata: map[string]any{"name": role.Name},
	})
	return role, nil
}

// Get returns a role of the current tenant. Roles of other tenants are
// reported as not found.
func (s *RoleService) Get(ctx context.Context, roleID string) (*Role, error) {
	const op = "authz.GetRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	role, err := getRole(ctx, s.store, scope, roleID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return role, nil
}

// List returns all roles of the current tenant.
func (s *RoleService) List(ctx context.Context) ([]*Role, error) {
	const op = "authz.ListRoles"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	roles, err := s.store.Roles().List(ctx, scope)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return roles, nil
}

// Update changes the name and description of a role. System roles keep their
// name; only the description is applied.
func (s *RoleService) Update(ctx context.Context, roleID string, in RoleInput) (*Role, error) {
	const op = "authz.UpdateRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	in, err = normalizeRoleInput(op, scope, in)
	if err != nil {
		return nil, err
	}

	var role *Role
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		r, err := getRole(ctx, s.store, scope, roleID)
		if err != nil {
			return err
		}
		if r.IsSystemRole {
			if in.Name != r.Name {
				slog.DebugContext(ctx, "ignoring rename of system role",
					slog.String("role_id", r.ID),
					slog.String("requested_name", in.Name),
				)
			}
		} else {
			r.Name = in.Name
		}
		r.Description = in.Description
		r.UpdatedAt = time.Now().UTC()
		if err := s.store.Roles().Update(ctx, scope, r); err != nil {
			return err
		}
		role = r
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		TenantID: scope.TenantID(),
		Resource: role.ID,
		Metadata: map[string]any{"name": role.Name},
	})
	return role, nil
}

// Delete removes a non-system role together with its permission and user
// assignments. Deleting a system role fails with ErrSystemRoleProtected and
// leaves every row intact.
func (s *RoleService) Delete(ctx context.Context, roleID string) error {
	const op = "authz.DeleteRole"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return errs.Wrap(op, err)
	}

	var perms, users int
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		r, err := getRole(ctx, s.store, scope, roleID)
		if err != nil {
			return err
		}
		if r.IsSystemRole {
			return ErrSystemRoleProtected
		}
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		if perms, err = s.store.RolePermissions().DeleteByRole(ctx, scope, r.ID); err != nil {
			return err
		}
		if users, err = s.store.UserRoles().DeleteByRole(ctx, scope, r.ID); err != nil {
			return err
		}
		return s.store.Roles().Delete(ctx, scope, r.ID)
	})
	if errors.Is(err, ErrSystemRoleProtected) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleDeleteRefused,
			TenantID: scope.TenantID(),
			Resource: roleID,
		})
	}
	if err != nil {
		return errs.Wrap(op, err)
	}

	invalidate(ctx, s.opts.cache, scope)
	slog.InfoContext(ctx, "role deleted",
		slog.String("tenant_id", scope.TenantID()),
		slog.String("role_id", roleID),
		slog.Int("permission_assignments", perms),
		slog.Int("user_assignments", users),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		TenantID: scope.TenantID(),
		Resource: roleID,
		Metadata: map[string]any{
			"permission_assignments": perms,
			"user_assignments":       users,
		},
	})
	return nil
}

// ProvisionSystemRoles creates SystemRoles for the tenant of scope and grants
// their default permissions. It joins the caller's transaction and skips
// roles and grants that already exist.
func ProvisionSystemRoles(ctx context.Context, st Store, scope tenant.Scope) error {
	if err := scope.Check("authz.ProvisionSystemRoles"); err != nil {
		return err
	}
	return st.WithinTx(ctx, func(ctx context.Context) error {
		for _, sr := range SystemRoles {
			role, err := st.Roles().GetByName(ctx, scope, sr.Name)
			if errors.Is(err, ErrRoleNotFound) {
				now := time.Now().UTC()
				role = &Role{
					ID:           id.NewUUIDv7(),
					TenantID:     scope.TenantID(),
					Name:         sr.Name,
					Description:  sr.Description,
					IsSystemRole: true,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				err = st.Roles().Create(ctx, scope, role)
			}
			if err != nil {
				return err
			}

			for _, name := range sr.Permissions {
				p, err := st.Permissions().GetByName(ctx, name)
				if errors.Is(err, ErrPermissionNotFound) {
					slog.WarnContext(ctx, "system role permission missing from catalog",
						slog.String("role", sr.Name),
						slog.String("permission", name),
					)
					continue
				}
				if err != nil {
					return err
				}
				if _, _, err := grantRolePermission(ctx, st, scope, role, p); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SystemRoleProvisioner adapts ProvisionSystemRoles to tenant.SystemRoleProvisioner.
type SystemRoleProvisioner struct {
	Store Store
}

// ProvisionSystemRoles implements tenant.SystemRoleProvisioner.
func (p SystemRoleProvisioner) ProvisionSystemRoles(ctx context.Context, scope tenant.Scope) error {
	return ProvisionSystemRoles(ctx, p.Store, scope)
}

func normalizeRoleInput(op string, scope tenant.Scope, in RoleInput) (RoleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(op, in); err != nil {
		return in, err
	}
	if in.TenantID != "" {
		tid, err := id.Normalize(in.TenantID)
		if err != nil || !scope.Contains(tid) {
			return in, errs.Wrap(op, ErrTenantMismatch)
		}
	}
	return in, nil
}

// getRole loads a role of scope; malformed ids cannot name a role.
func getRole(ctx context.Context, st Store, scope tenant.Scope, roleID string) (*Role, error) {
	roleID, ok := canonical(roleID)
	if !ok {
		return nil, ErrRoleNotFound
	}
	return st.Roles().GetByID(ctx, scope, roleID)
}

func canonical(s string) (string, bool) {
	norm, err := id.Normalize(s)
	return norm, err == nil
}

// invalidate drops cached permissions of the tenant. A cache failure never
// fails the committed write.
func invalidate(ctx context.Context, cache PermissionCache, scope tenant.Scope) {
	if err := cache.InvalidateTenant(ctx, scope); err != nil {
		slog.WarnContext(ctx, "failed to invalidate permission cache",
			slog.String("tenant_id", scope.TenantID()),
			slog.String("error", err.Error()),
		)
	}
}
