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

package memory

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Every lookup and delete below is keyed by a compound index whose first
// component is the scope's tenant id, so ids of another tenant never match.

type rolePermissionRepository struct {
	s *Store
}

func copyRolePermission(a *authz.RolePermissionAssignment) *authz.RolePermissionAssignment {
	c := *a
	return &c
}

func (r *rolePermissionRepository) Create(ctx context.Context, scope tenant.Scope, a *authz.RolePermissionAssignment) error {
	if err := scope.Check("memory.CreateRolePermission"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		if err := tenantExists(txn, scope, "memory.CreateRolePermission"); err != nil {
			return err
		}
		clash, err := txn.First(tableRolePermissions, indexRolePerm, scope.TenantID(), a.RoleID, a.PermissionID)
		if err != nil {
			return errs.Internal("memory.CreateRolePermission", err)
		}
		if clash != nil {
			return authz.ErrAssignmentAlreadyExists
		}
		if _, err := scopedRole(txn, scope, a.RoleID); err != nil {
			return err
		}
		stored := copyRolePermission(a)
		stored.TenantID = scope.TenantID()
		if err := txn.Insert(tableRolePermissions, stored); err != nil {
			return errs.Internal("memory.CreateRolePermission", err)
		}
		return nil
	})
}

func (r *rolePermissionRepository) Get(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (*authz.RolePermissionAssignment, error) {
	if err := scope.Check("memory.GetRolePermission"); err != nil {
		return nil, err
	}
	raw, err := r.s.read(ctx).First(tableRolePermissions, indexRolePerm, scope.TenantID(), roleID, permissionID)
	if err != nil {
		return nil, errs.Internal("memory.GetRolePermission", err)
	}
	if raw == nil {
		return nil, authz.ErrAssignmentNotFound
	}
	return copyRolePermission(raw.(*authz.RolePermissionAssignment)), nil
}

func (r *rolePermissionRepository) Delete(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (bool, error) {
	if err := scope.Check("memory.DeleteRolePermission"); err != nil {
		return false, err
	}
	var removed bool
	err := r.s.write(ctx, func(txn *memdb.Txn) error {
		n, err := txn.DeleteAll(tableRolePermissions, indexRolePerm, scope.TenantID(), roleID, permissionID)
		if err != nil {
			return errs.Internal("memory.DeleteRolePermission", err)
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

func (r *rolePermissionRepository) DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error) {
	if err := scope.Check("memory.DeleteRolePermissions"); err != nil {
		return 0, err
	}
	var n int
	err := r.s.write(ctx, func(txn *memdb.Txn) error {
		var err error
		n, err = txn.DeleteAll(tableRolePermissions, indexRole, scope.TenantID(), roleID)
		if err != nil {
			return errs.Internal("memory.DeleteRolePermissions", err)
		}
		return nil
	})
	return n, err
}

func (r *rolePermissionRepository) ListByRole(ctx context.Context, scope tenant.Scope, roleID string) ([]*authz.RolePermissionAssignment, error) {
	if err := scope.Check("memory.ListRolePermissions"); err != nil {
		return nil, err
	}
	it, err := r.s.read(ctx).Get(tableRolePermissions, indexRole, scope.TenantID(), roleID)
	if err != nil {
		return nil, errs.Internal("memory.ListRolePermissions", err)
	}
	return collect(it, copyRolePermission), nil
}

func (r *rolePermissionRepository) ListByRoles(ctx context.Context, scope tenant.Scope, roleIDs []string) ([]*authz.RolePermissionAssignment, error) {
	out := []*authz.RolePermissionAssignment{}
	for _, roleID := range roleIDs {
		as, err := r.ListByRole(ctx, scope, roleID)
		if err != nil {
			return nil, err
		}
		out = append(out, as...)
	}
	return out, nil
}

type userRoleRepository struct {
	s *Store
}

func copyUserRole(a *authz.UserRoleAssignment) *authz.UserRoleAssignment {
	c := *a
	return &c
}

func (r *userRoleRepository) Create(ctx context.Context, scope tenant.Scope, a *authz.UserRoleAssignment) error {
	if err := scope.Check("memory.CreateUserRole"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		if err := tenantExists(txn, scope, "memory.CreateUserRole"); err != nil {
			return err
		}
		clash, err := txn.First(tableUserRoles, indexUserRole, scope.TenantID(), a.UserAccountID, a.RoleID)
		if err != nil {
			return errs.Internal("memory.CreateUserRole", err)
		}
		if clash != nil {
			return authz.ErrAssignmentAlreadyExists
		}
		if _, err := scopedRole(txn, scope, a.RoleID); err != nil {
			return err
		}
		stored := copyUserRole(a)
		stored.TenantID = scope.TenantID()
		if err := txn.Insert(tableUserRoles, stored); err != nil {
			return errs.Internal("memory.CreateUserRole", err)
		}
		return nil
	})
}

func (r *userRoleRepository) Get(ctx context.Context, scope tenant.Scope, userID, roleID string) (*authz.UserRoleAssignment, error) {
	if err := scope.Check("memory.GetUserRole"); err != nil {
		return nil, err
	}
	raw, err := r.s.read(ctx).First(tableUserRoles, indexUserRole, scope.TenantID(), userID, roleID)
	if err != nil {
		return nil, errs.Internal("memory.GetUserRole", err)
	}
	if raw == nil {
		return nil, authz.ErrAssignmentNotFound
	}
	return copyUserRole(raw.(*authz.UserRoleAssignment)), nil
}

func (r *userRoleRepository) Delete(ctx context.Context, scope tenant.Scope, userID, roleID string) (bool, error) {
	if err := scope.Check("memory.DeleteUserRole"); err != nil {
		return false, err
	}
	var removed bool
	err := r.s.write(ctx, func(txn *memdb.Txn) error {
		n, err := txn.DeleteAll(tableUserRoles, indexUserRole, scope.TenantID(), userID, roleID)
		if err != nil {
			return errs.Internal("memory.DeleteUserRole", err)
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

func (r *userRoleRepository) DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error) {
	if err := scope.Check("memory.DeleteUserRoles"); err != nil {
		return 0, err
	}
	var n int
	err := r.s.write(ctx, func(txn *memdb.Txn) error {
		var err error
		n, err = txn.DeleteAll(tableUserRoles, indexRole, scope.TenantID(), roleID)
		if err != nil {
			return errs.Internal("memory.DeleteUserRoles", err)
		}
		return nil
	})
	return n, err
}

func (r *userRoleRepository) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]*authz.UserRoleAssignment, error) {
	if err := scope.Check("memory.ListUserRoles"); err != nil {
		return nil, err
	}
	it, err := r.s.read(ctx).Get(tableUserRoles, indexUser, scope.TenantID(), userID)
	if err != nil {
		return nil, errs.Internal("memory.ListUserRoles", err)
	}
	return collect(it, copyUserRole), nil
}
