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
)

// PermissionRepository implements authz.PermissionRepository. The catalog is
// global, so no method takes a scope.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `id, name, description, created_at, updated_at`

func scanPermission(row pgx.Row) (*authz.Permission, error) {
	var p authz.Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts the permission, or refreshes the description of the one
// already stored under the same name.
func (r *PermissionRepository) Upsert(ctx context.Context, p *authz.Permission) error {
	err := r.db.q(ctx).QueryRow(ctx, `
		INSERT INTO permissions (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return errs.Internal("postgres.UpsertPermission", err)
	}
	return nil
}

// GetByID retrieves a permission by ID
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*authz.Permission, error) {
	return r.get(ctx, "postgres.GetPermission", `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
}

// GetByName retrieves a permission by name
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*authz.Permission, error) {
	return r.get(ctx, "postgres.GetPermissionByName", `SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name)
}

func (r *PermissionRepository) get(ctx context.Context, op, query, arg string) (*authz.Permission, error) {
	p, err := scanPermission(r.db.q(ctx).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authz.ErrPermissionNotFound
	}
	if err != nil {
		return nil, errs.Internal(op, err)
	}
	return p, nil
}

// ListByIDs retrieves the permissions among ids, ordered by name
func (r *PermissionRepository) ListByIDs(ctx context.Context, ids []string) ([]*authz.Permission, error) {
	if len(ids) == 0 {
		return []*authz.Permission{}, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+permissionColumns+` FROM permissions
		WHERE id = ANY($1::text[]::uuid[])
		ORDER BY name
	`, ids)
	return scanPermissions("postgres.ListPermissions", rows, err)
}

// List retrieves the whole catalog ordered by name
func (r *PermissionRepository) List(ctx context.Context) ([]*authz.Permission, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY name`)
	return scanPermissions("postgres.ListPermissions", rows, err)
}

func scanPermissions(op string, rows pgx.Rows, err error) ([]*authz.Permission, error) {
	if err != nil {
		return nil, errs.Internal(op, err)
	}
	defer rows.Close()

	perms := []*authz.Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, errs.Internal(op, err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal(op, err)
	}
	return perms, nil
}
