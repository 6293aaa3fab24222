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

// Package memory implements every directory repository on go-memdb. It backs
// the "memory" store driver and the service tests.
package memory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

const (
	tableTenants         = "tenants"
	tablePermissions     = "permissions"
	tableRoles           = "roles"
	tableAccounts        = "user_accounts"
	tableRolePermissions = "role_permission_assignments"
	tableUserRoles       = "user_role_assignments"

	indexID       = "id"
	indexName     = "name"
	indexTenant   = "tenant_id"
	indexTenantNm = "tenant_name"
	indexUsername = "tenant_username"
	indexEmail    = "tenant_email"
	indexRole     = "tenant_role"
	indexUser     = "tenant_user"
	indexRolePerm = "tenant_role_permission"
	indexUserRole = "tenant_user_role"
)

func stringIndex(name, field string, unique bool) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         name,
		Unique:       unique,
		AllowMissing: name != indexID,
		Indexer:      &memdb.StringFieldIndex{Field: field},
	}
}

func compoundIndex(name string, unique bool, fields ...string) *memdb.IndexSchema {
	indexes := make([]memdb.Indexer, 0, len(fields))
	for _, f := range fields {
		indexes = append(indexes, &memdb.StringFieldIndex{Field: f})
	}
	return &memdb.IndexSchema{
		Name:         name,
		Unique:       unique,
		AllowMissing: true,
		Indexer:      &memdb.CompoundIndex{Indexes: indexes},
	}
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	t := &memdb.TableSchema{Name: name, Indexes: map[string]*memdb.IndexSchema{}}
	for _, idx := range indexes {
		t.Indexes[idx.Name] = idx
	}
	return t
}

// Schema returns the memdb schema of the directory. Unique secondary indexes
// are declared for lookups; uniqueness itself is checked by the repositories
// before every insert, since memdb only enforces the id index.
func Schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableTenants: table(tableTenants,
				stringIndex(indexID, "ID", true),
				stringIndex(indexName, "Name", true),
			),
			tablePermissions: table(tablePermissions,
				stringIndex(indexID, "ID", true),
				stringIndex(indexName, "Name", true),
			),
			tableRoles: table(tableRoles,
				stringIndex(indexID, "ID", true),
				stringIndex(indexTenant, "TenantID", false),
				compoundIndex(indexTenantNm, true, "TenantID", "Name"),
			),
			tableAccounts: table(tableAccounts,
				stringIndex(indexID, "ID", true),
				stringIndex(indexTenant, "TenantID", false),
				compoundIndex(indexUsername, true, "TenantID", "Username"),
				compoundIndex(indexEmail, true, "TenantID", "Email"),
			),
			tableRolePermissions: table(tableRolePermissions,
				stringIndex(indexID, "ID", true),
				stringIndex(indexTenant, "TenantID", false),
				compoundIndex(indexRole, false, "TenantID", "RoleID"),
				compoundIndex(indexRolePerm, true, "TenantID", "RoleID", "PermissionID"),
			),
			tableUserRoles: table(tableUserRoles,
				stringIndex(indexID, "ID", true),
				stringIndex(indexTenant, "TenantID", false),
				compoundIndex(indexRole, false, "TenantID", "RoleID"),
				compoundIndex(indexUser, false, "TenantID", "UserAccountID"),
				compoundIndex(indexUserRole, true, "TenantID", "UserAccountID", "RoleID"),
			),
		},
	}
}

// Store is an in-process directory store.
type Store struct {
	db *memdb.MemDB
}

// New creates an empty store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &Store{db: db}, nil
}

type txnKey struct{}

// WithinTx runs fn inside one memdb write transaction. memdb allows a single
// writer, so nested calls reuse the transaction already carried by ctx.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txnKey{}).(*memdb.Txn); ok {
		return fn(ctx)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(context.WithValue(ctx, txnKey{}, txn)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// read returns the transaction carried by ctx, or a fresh read snapshot.
func (s *Store) read(ctx context.Context) *memdb.Txn {
	if txn, ok := ctx.Value(txnKey{}).(*memdb.Txn); ok {
		return txn
	}
	return s.db.Txn(false)
}

// write runs fn against the write transaction of ctx, opening one if needed.
func (s *Store) write(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txnKey{}).(*memdb.Txn))
	})
}

// Tenants returns the tenant repository.
func (s *Store) Tenants() tenant.Repository { return &tenantRepository{s: s} }

// Accounts returns the user account repository.
func (s *Store) Accounts() identity.AccountRepository { return &accountRepository{s: s} }

// Roles returns the role repository.
func (s *Store) Roles() authz.RoleRepository { return &roleRepository{s: s} }

// Permissions returns the global permission repository.
func (s *Store) Permissions() authz.PermissionRepository { return &permissionRepository{s: s} }

// RolePermissions returns the role↔permission assignment repository.
func (s *Store) RolePermissions() authz.RolePermissionRepository {
	return &rolePermissionRepository{s: s}
}

// UserRoles returns the user↔role assignment repository.
func (s *Store) UserRoles() authz.UserRoleRepository { return &userRoleRepository{s: s} }

var _ authz.Store = (*Store)(nil)

// collect drains it, converting every object with conv.
func collect[T any](it memdb.ResultIterator, conv func(T) T) []T {
	out := []T{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, conv(raw.(T)))
	}
	return out
}

// tenantExists rejects writes into a tenant that is not in the directory, the
// way the tenant_id foreign keys do in postgres.
func tenantExists(txn *memdb.Txn, scope tenant.Scope, op string) error {
	raw, err := txn.First(tableTenants, indexID, scope.TenantID())
	if err != nil {
		return errs.Internal(op, err)
	}
	if raw == nil {
		return tenant.ErrTenantNotFound
	}
	return nil
}
