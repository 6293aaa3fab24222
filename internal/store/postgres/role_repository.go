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
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, tenant_id, name, description, is_system_role, created_at, updated_at`

func scanRole(row pgx.Row) (*authz.Role, error) {
	var role authz.Role
	err := row.Scan(
		&role.ID, &role.TenantID, &role.Name, &role.Description,
		&role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) scanAll(op string, rows pgx.Rows, err error) ([]*authz.Role, error) {
	if err != nil {
		return nil, errs.Internal(op, err)
	}
	defer rows.Close()

	roles := []*authz.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, errs.Internal(op, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal(op, err)
	}
	return roles, nil
}

// Create creates a new role in the tenant of scope
func (r *RoleRepository) Create(ctx context.Context, scope tenant.Scope, role *authz.Role) error {
	if err := scope.Check("postgres.CreateRole"); err != nil {
		return err
	}
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, description, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, role.ID, scope.TenantID(), role.Name, role.Description, role.IsSystemRole, role.CreatedAt, role.UpdatedAt)
	if isUniqueViolation(err) {
		return authz.ErrRoleAlreadyExists
	}
	if missingTenant(err) {
		return tenant.ErrTenantNotFound
	}
	if err != nil {
		return errs.Internal("postgres.CreateRole", err)
	}
	role.TenantID = scope.TenantID()
	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (*authz.Role, error) {
	return r.get(ctx, scope, "postgres.GetRole", `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND id = $2
	`, id)
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, scope tenant.Scope, name string) (*authz.Role, error) {
	return r.get(ctx, scope, "postgres.GetRoleByName", `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND name = $2
	`, name)
}

func (r *RoleRepository) get(ctx context.Context, scope tenant.Scope, op, query, arg string) (*authz.Role, error) {
	if err := scope.Check(op); err != nil {
		return nil, err
	}
	role, err := scanRole(r.db.q(ctx).QueryRow(ctx, query, scope.TenantID(), arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authz.ErrRoleNotFound
	}
	if err != nil {
		return nil, errs.Internal(op, err)
	}
	return role, nil
}

// List retrieves all roles of the tenant
func (r *RoleRepository) List(ctx context.Context, scope tenant.Scope) ([]*authz.Role, error) {
	if err := scope.Check("postgres.ListRoles"); err != nil {
		return nil, err
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY created_at, id
	`, scope.TenantID())
	return r.scanAll("postgres.ListRoles", rows, err)
}

// ListByIDs retrieves the roles among ids owned by the tenant
func (r *RoleRepository) ListByIDs(ctx context.Context, scope tenant.Scope, ids []string) ([]*authz.Role, error) {
	if err := scope.Check("postgres.ListRoles"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*authz.Role{}, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE tenant_id = $1 AND id = ANY($2::text[]::uuid[])
		ORDER BY created_at, id
	`, scope.TenantID(), ids)
	return r.scanAll("postgres.ListRoles", rows, err)
}

// Update updates role name and description
func (r *RoleRepository) Update(ctx context.Context, scope tenant.Scope, role *authz.Role) error {
	if err := scope.Check("postgres.UpdateRole"); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE roles SET name = $3, description = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), role.ID, role.Name, role.Description, role.UpdatedAt)
	if isUniqueViolation(err) {
		return authz.ErrRoleAlreadyExists
	}
	if err != nil {
		return errs.Internal("postgres.UpdateRole", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// Delete deletes a role. Assignments must already be gone; the foreign keys
// of both assignment tables refuse the delete otherwise.
func (r *RoleRepository) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := scope.Check("postgres.DeleteRole"); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM roles WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	if err != nil {
		return roleDeleteError(err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// roleDeleteError maps a failed role delete. A foreign key violation means an
// assignment was committed after the service cleared them.
func roleDeleteError(err error) error {
	if _, ok := foreignKey(err); ok {
		return authz.ErrRoleInUse
	}
	return errs.Internal("postgres.DeleteRole", err)
}

// Count returns the number of roles of the tenant
func (r *RoleRepository) Count(ctx context.Context, scope tenant.Scope) (int, error) {
	if err := scope.Check("postgres.CountRoles"); err != nil {
		return 0, err
	}
	var n int
	err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE tenant_id = $1`, scope.TenantID()).Scan(&n)
	if err != nil {
		return 0, errs.Internal("postgres.CountRoles", err)
	}
	return n, nil
}
