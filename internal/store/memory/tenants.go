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

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

type tenantRepository struct {
	s *Store
}

func copyTenant(t *tenant.Tenant) *tenant.Tenant {
	c := *t
	return &c
}

func (r *tenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		existing, err := txn.First(tableTenants, indexName, t.Name)
		if err != nil {
			return errs.Internal("memory.CreateTenant", err)
		}
		if existing != nil {
			return tenant.ErrTenantAlreadyExists
		}
		if err := txn.Insert(tableTenants, copyTenant(t)); err != nil {
			return errs.Internal("memory.CreateTenant", err)
		}
		return nil
	})
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return r.first(ctx, indexID, id)
}

func (r *tenantRepository) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	return r.first(ctx, indexName, name)
}

func (r *tenantRepository) first(ctx context.Context, index, value string) (*tenant.Tenant, error) {
	raw, err := r.s.read(ctx).First(tableTenants, index, value)
	if err != nil {
		return nil, errs.Internal("memory.GetTenant", err)
	}
	if raw == nil {
		return nil, tenant.ErrTenantNotFound
	}
	return copyTenant(raw.(*tenant.Tenant)), nil
}

func (r *tenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableTenants, indexID, t.ID)
		if err != nil {
			return errs.Internal("memory.UpdateTenant", err)
		}
		if raw == nil {
			return tenant.ErrTenantNotFound
		}
		clash, err := txn.First(tableTenants, indexName, t.Name)
		if err != nil {
			return errs.Internal("memory.UpdateTenant", err)
		}
		if clash != nil && clash.(*tenant.Tenant).ID != t.ID {
			return tenant.ErrTenantAlreadyExists
		}
		updated := copyTenant(raw.(*tenant.Tenant))
		updated.Name = t.Name
		updated.Status = t.Status
		updated.UpdatedAt = t.UpdatedAt
		if err := txn.Insert(tableTenants, updated); err != nil {
			return errs.Internal("memory.UpdateTenant", err)
		}
		return nil
	})
}

// Delete removes the tenant and cascades to every tenant-owned table.
func (r *tenantRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableTenants, indexID, id)
		if err != nil {
			return errs.Internal("memory.DeleteTenant", err)
		}
		if raw == nil {
			return tenant.ErrTenantNotFound
		}
		for _, tbl := range []string{tableUserRoles, tableRolePermissions, tableAccounts, tableRoles} {
			if _, err := txn.DeleteAll(tbl, indexTenant, id); err != nil {
				return errs.Internal("memory.DeleteTenant", err)
			}
		}
		if err := txn.Delete(tableTenants, raw); err != nil {
			return errs.Internal("memory.DeleteTenant", err)
		}
		return nil
	})
}

func (r *tenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	it, err := r.s.read(ctx).Get(tableTenants, indexID)
	if err != nil {
		return nil, errs.Internal("memory.ListTenants", err)
	}
	all := collect(it, copyTenant)
	if offset >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
