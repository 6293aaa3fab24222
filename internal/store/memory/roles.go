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

type roleRepository struct {
	s *Store
}

func copyRole(r *authz.Role) *authz.Role {
	c := *r
	return &c
}

// scopedRole returns the role with id when it belongs to scope.
func scopedRole(txn *memdb.Txn, scope tenant.Scope, id string) (*authz.Role, error) {
	raw, err := txn.First(tableRoles, indexID, id)
	if err != nil {
		return nil, errs.Internal("memory.GetRole", err)
	}
	if raw == nil || !scope.Contains(raw.(*authz.Role).TenantID) {
		return nil, authz.ErrRoleNotFound
	}
	return raw.(*authz.Role), nil
}

func (r *roleRepository) Create(ctx context.Context, scope tenant.Scope, role *authz.Role) error {
	if err := scope.Check("memory.CreateRole"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		if err := tenantExists(txn, scope, "memory.CreateRole"); err != nil {
			return err
		}
		clash, err := txn.First(tableRoles, indexTenantNm, scope.TenantID(), role.Name)
		if err != nil {
			return errs.Internal("memory.CreateRole", err)
		}
		if clash != nil {
			return authz.ErrRoleAlreadyExists
		}
		stored := copyRole(role)
		stored.TenantID = scope.TenantID()
		if err := txn.Insert(tableRoles, stored); err != nil {
			return errs.Internal("memory.CreateRole", err)
		}
		return nil
	})
}

func (r *roleRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (*authz.Role, error) {
	if err := scope.Check("memory.GetRole"); err != nil {
		return nil, err
	}
	role, err := scopedRole(r.s.read(ctx), scope, id)
	if err != nil {
		return nil, err
	}
	return copyRole(role), nil
}

func (r *roleRepository) GetByName(ctx context.Context, scope tenant.Scope, name string) (*authz.Role, error) {
	if err := scope.Check("memory.GetRole"); err != nil {
		return nil, err
	}
	raw, err := r.s.read(ctx).First(tableRoles, indexTenantNm, scope.TenantID(), name)
	if err != nil {
		return nil, errs.Internal("memory.GetRole", err)
	}
	if raw == nil {
		return nil, authz.ErrRoleNotFound
	}
	return copyRole(raw.(*authz.Role)), nil
}

func (r *roleRepository) List(ctx context.Context, scope tenant.Scope) ([]*authz.Role, error) {
	if err := scope.Check("memory.ListRoles"); err != nil {
		return nil, err
	}
	it, err := r.s.read(ctx).Get(tableRoles, indexTenant, scope.TenantID())
	if err != nil {
		return nil, errs.Internal("memory.ListRoles", err)
	}
	return collect(it, copyRole), nil
}

func (r *roleRepository) ListByIDs(ctx context.Context, scope tenant.Scope, ids []string) ([]*authz.Role, error) {
	if err := scope.Check("memory.ListRoles"); err != nil {
		return nil, err
	}
	txn := r.s.read(ctx)
	out := make([]*authz.Role, 0, len(ids))
	for _, id := range ids {
		role, err := scopedRole(txn, scope, id)
		if errs.Is(err, errs.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, copyRole(role))
	}
	return out, nil
}

// Update applies name, description and updated_at. Tenant, system flag and
// creation time are never taken from the argument.
func (r *roleRepository) Update(ctx context.Context, scope tenant.Scope, role *authz.Role) error {
	if err := scope.Check("memory.UpdateRole"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		stored, err := scopedRole(txn, scope, role.ID)
		if err != nil {
			return err
		}
		clash, err := txn.First(tableRoles, indexTenantNm, scope.TenantID(), role.Name)
		if err != nil {
			return errs.Internal("memory.UpdateRole", err)
		}
		if clash != nil && clash.(*authz.Role).ID != role.ID {
			return authz.ErrRoleAlreadyExists
		}
		updated := copyRole(stored)
		updated.Name = role.Name
		updated.Description = role.Description
		updated.UpdatedAt = role.UpdatedAt
		if err := txn.Insert(tableRoles, updated); err != nil {
			return errs.Internal("memory.UpdateRole", err)
		}
		return nil
	})
}

func (r *roleRepository) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := scope.Check("memory.DeleteRole"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		stored, err := scopedRole(txn, scope, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(tableRoles, stored); err != nil {
			return errs.Internal("memory.DeleteRole", err)
		}
		return nil
	})
}

func (r *roleRepository) Count(ctx context.Context, scope tenant.Scope) (int, error) {
	roles, err := r.List(ctx, scope)
	if err != nil {
		return 0, err
	}
	return len(roles), nil
}
