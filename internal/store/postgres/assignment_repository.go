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


package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Every statement below carries tenant_id = $1 from the scope, including the
// bulk deletes. Ids of another tenant therefore never match a row.

// RolePermissionRepository implements authz.RolePermissionRepository
type RolePermissionRepository struct {
	db *DB
}

// NewRolePermissionRepository creates a new role permission repository
func NewRolePermissionRepository(db *DB) *RolePermissionRepository {
	return &RolePermissionRepository{db: db}
}

const rolePermissionColumns = `id, tenant_id, role_id, permission_id, assigned_at, created_at, updated_at`

func scanRolePermission(row pgx.Row) (*authz.RolePermissionAssignment, error) {
	var a authz.RolePermissionAssignment
	err := row.Scan(&a.ID, &a.TenantID, &a.RoleID, &a.PermissionID, &a.AssignedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create stores the assignment. An existing pair leaves the table untouched
// and yields authz.ErrAssignmentAlreadyExists.
func (r *RolePermissionRepository) Create(ctx context.Context, scope tenant.Scope, a *authz.RolePermissionAssignment) error {
	if err := scope.Check("postgres.CreateRolePermission"); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO role_permission_assignments (
			id, tenant_id, role_id, permission_id, assigned_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, role_id, permission_id) DO NOTHING
	`, a.ID, scope.TenantID(), a.RoleID, a.PermissionID, a.AssignedAt, a.CreatedAt, a.UpdatedAt)
	if constraint, ok := foreignKey(err); ok {
		switch {
		case missingTenant(err):
			return tenant.ErrTenantNotFound
		case constraint == "fk_role_permission_permission":
			return authz.ErrPermissionNotFound
		}
		return authz.ErrRoleNotFound
	}
	if err != nil {
		return errs.Internal("postgres.CreateRolePermission", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrAssignmentAlreadyExists
	}
	a.TenantID = scope.TenantID()
	return nil
}

// Get retrieves the assignment of permissionID to roleID
func (r *RolePermissionRepository) Get(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (*authz.RolePermissionAssignment, error) {
	if err := scope.Check("postgres.GetRolePermission"); err != nil {
		return nil, err
	}
	a, err := scanRolePermission(r.db.q(ctx).QueryRow(ctx, `
		SELECT `+rolePermissionColumns+` FROM role_permission_assignments
		WHERE tenant_id = $1 AND role_id = $2 AND permission_id = $3
	`, scope.TenantID(), roleID, permissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authz.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, errs.Internal("postgres.GetRolePermission", err)
	}
	return a, nil
}

// Delete reports whether a row was removed
func (r *RolePermissionRepository) Delete(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (bool, error) {
	if err := scope.Check("postgres.DeleteRolePermission"); err != nil {
		return false, err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM role_permission_assignments
		WHERE tenant_id = $1 AND role_id = $2 AND permission_id = $3
	`, scope.TenantID(), roleID, permissionID)
	if err != nil {
		return false, errs.Internal("postgres.DeleteRolePermission", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByRole removes every assignment of roleID
func (r *RolePermissionRepository) DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error) {
	if err := scope.Check("postgres.DeleteRolePermissions"); err != nil {
		return 0, err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM role_permission_assignments WHERE tenant_id = $1 AND role_id = $2
	`, scope.TenantID(), roleID)
	if err != nil {
		return 0, errs.Internal("postgres.DeleteRolePermissions", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByRole retrieves the assignments of roleID
func (r *RolePermissionRepository) ListByRole(ctx context.Context, scope tenant.Scope, roleID string) ([]*authz.RolePermissionAssignment, error) {
	return r.ListByRoles(ctx, scope, []string{roleID})
}

// ListByRoles retrieves the assignments of any of roleIDs
func (r *RolePermissionRepository) ListByRoles(ctx context.Context, scope tenant.Scope, roleIDs []string) ([]*authz.RolePermissionAssignment, error) {
	if err := scope.Check("postgres.ListRolePermissions"); err != nil {
		return nil, err
	}
	out := []*authz.RolePermissionAssignment{}
	if len(roleIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+rolePermissionColumns+` FROM role_permission_assignments
		WHERE tenant_id = $1 AND role_id = ANY($2::text[]::uuid[])
		ORDER BY assigned_at, id
	`, scope.TenantID(), roleIDs)
	if err != nil {
		return nil, errs.Internal("postgres.ListRolePermissions", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanRolePermission(rows)
		if err != nil {
			return nil, errs.Internal("postgres.ListRolePermissions", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("postgres.ListRolePermissions", err)
	}
	return out, nil
}

// UserRoleRepository implements authz.UserRoleRepository
type UserRoleRepository struct {
	db *DB
}

// NewUserRoleRepository creates a new user role repository
func NewUserRoleRepository(db *DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

const userRoleColumns = `id, tenant_id, user_account_id, role_id, assigned_at, created_at, updated_at`

func scanUserRole(row pgx.Row) (*authz.UserRoleAssignment, error) {
	var a authz.UserRoleAssignment
	err := row.Scan(&a.ID, &a.TenantID, &a.UserAccountID, &a.RoleID, &a.AssignedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create stores the assignment; an existing pair yields
// authz.ErrAssignmentAlreadyExists.
func (r *UserRoleRepository) Create(ctx context.Context, scope tenant.Scope, a *authz.UserRoleAssignment) error {
	if err := scope.Check("postgres.CreateUserRole"); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO user_role_assignments (
			id, tenant_id, user_account_id, role_id, assigned_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, user_account_id, role_id) DO NOTHING
	`, a.ID, scope.TenantID(), a.UserAccountID, a.RoleID, a.AssignedAt, a.CreatedAt, a.UpdatedAt)
	if constraint, ok := foreignKey(err); ok {
		switch {
		case missingTenant(err):
			return tenant.ErrTenantNotFound
		case constraint == "fk_user_role_user":
			return identity.ErrAccountNotFound
		}
		return authz.ErrRoleNotFound
	}
	if err != nil {
		return errs.Internal("postgres.CreateUserRole", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrAssignmentAlreadyExists
	}
	a.TenantID = scope.TenantID()
	return nil
}

// Get retrieves the assignment of roleID to userID
func (r *UserRoleRepository) Get(ctx context.Context, scope tenant.Scope, userID, roleID string) (*authz.UserRoleAssignment, error) {
	if err := scope.Check("postgres.GetUserRole"); err != nil {
		return nil, err
	}
	a, err := scanUserRole(r.db.q(ctx).QueryRow(ctx, `
		SELECT `+userRoleColumns+` FROM user_role_assignments
		WHERE tenant_id = $1 AND user_account_id = $2 AND role_id = $3
	`, scope.TenantID(), userID, roleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authz.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, errs.Internal("postgres.GetUserRole", err)
	}
	return a, nil
}

// Delete reports whether a row was removed
func (r *UserRoleRepository) Delete(ctx context.Context, scope tenant.Scope, userID, roleID string) (bool, error) {
	if err := scope.Check("postgres.DeleteUserRole"); err != nil {
		return false, err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM user_role_assignments
		WHERE tenant_id = $1 AND user_account_id = $2 AND role_id = $3
	`, scope.TenantID(), userID, roleID)
	if err != nil {
		return false, errs.Internal("postgres.DeleteUserRole", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByRole removes every user assignment of roleID
func (r *UserRoleRepository) DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error) {
	if err := scope.Check("postgres.DeleteUserRoles"); err != nil {
		return 0, err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM user_role_assignments WHERE tenant_id = $1 AND role_id = $2
	`, scope.TenantID(), roleID)
	if err != nil {
		return 0, errs.Internal("postgres.DeleteUserRoles", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByUser retrieves the role assignments of userID
func (r *UserRoleRepository) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]*authz.UserRoleAssignment, error) {
	if err := scope.Check("postgres.ListUserRoles"); err != nil {
		return nil, err
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+userRoleColumns+` FROM user_role_assignments
		WHERE tenant_id = $1 AND user_account_id = $2
		ORDER BY assigned_at, id
	`, scope.TenantID(), userID)
	if err != nil {
		return nil, errs.Internal("postgres.ListUserRoles", err)
	}
	defer rows.Close()

	out := []*authz.UserRoleAssignment{}
	for rows.Next() {
		a, err := scanUserRole(rows)
		if err != nil {
			return nil, errs.Internal("postgres.ListUserRoles", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("postgres.ListUserRoles", err)
	}
	return out, nil
}
