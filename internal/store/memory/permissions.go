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
)

type permissionRepository struct {
	s *Store
}

func copyPermission(p *authz.Permission) *authz.Permission {
	c := *p
	return &c
}

func (r *permissionRepository) Upsert(ctx context.Context, p *authz.Permission) error {
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tablePermissions, indexName, p.Name)
		if err != nil {
			return errs.Internal("memory.UpsertPermission", err)
		}
		stored := copyPermission(p)
		if raw != nil {
			existing := raw.(*authz.Permission)
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		}
		if err := txn.Insert(tablePermissions, stored); err != nil {
			return errs.Internal("memory.UpsertPermission", err)
		}
		return nil
	})
}

func (r *permissionRepository) GetByID(ctx context.Context, id string) (*authz.Permission, error) {
	return r.first(ctx, indexID, id)
}

func (r *permissionRepository) GetByName(ctx context.Context, name string) (*authz.Permission, error) {
	return r.first(ctx, indexName, name)
}

func (r *permissionRepository) first(ctx context.Context, index, value string) (*authz.Permission, error) {
	raw, err := r.s.read(ctx).First(tablePermissions, index, value)
	if err != nil {
		return nil, errs.Internal("memory.GetPermission", err)
	}
	if raw == nil {
		return nil, authz.ErrPermissionNotFound
	}
	return copyPermission(raw.(*authz.Permission)), nil
}

func (r *permissionRepository) ListByIDs(ctx context.Context, ids []string) ([]*authz.Permission, error) {
	txn := r.s.read(ctx)
	out := make([]*authz.Permission, 0, len(ids))
	for _, id := range ids {
		raw, err := txn.First(tablePermissions, indexID, id)
		if err != nil {
			return nil, errs.Internal("memory.ListPermissions", err)
		}
		if raw != nil {
			out = append(out, copyPermission(raw.(*authz.Permission)))
		}
	}
	return out, nil
}

func (r *permissionRepository) List(ctx context.Context) ([]*authz.Permission, error) {
	it, err := r.s.read(ctx).Get(tablePermissions, indexName)
	if err != nil {
		return nil, errs.Internal("memory.ListPermissions", err)
	}
	return collect(it, copyPermission), nil
}
