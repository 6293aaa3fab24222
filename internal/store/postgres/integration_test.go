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


//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	cfg := Config{
		Host:         envOr("TENANTDIR_DB_HOST", "localhost"),
		Port:         envOr("TENANTDIR_DB_PORT", "5432"),
		User:         envOr("TENANTDIR_DB_USER", "tenantdir"),
		Password:     envOr("TENANTDIR_DB_PASSWORD", "tenantdir_dev_password"),
		Database:     envOr("TENANTDIR_DB_NAME", "tenantdir"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}

	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	return NewStore(db)
}

func seedTenant(t *testing.T, s *Store) tenant.Scope {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	tn := &tenant.Tenant{ID: id.NewUUIDv7(), Status: tenant.StatusActive, CreatedAt: now, UpdatedAt: now}
	tn.Name = "it-" + tn.ID
	require.NoError(t, s.Tenants().Create(ctx, tn))
	t.Cleanup(func() { _ = s.Tenants().Delete(context.Background(), tn.ID) })

	scope, err := tenant.NewScope(tn.ID)
	require.NoError(t, err)
	return scope
}

func seedRole(t *testing.T, s *Store, scope tenant.Scope, name string) *authz.Role {
	t.Helper()
	now := time.Now().UTC()
	role := &authz.Role{ID: id.NewUUIDv7(), Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Roles().Create(context.Background(), scope, role))
	return role
}

func seedPermission(t *testing.T, s *Store) *authz.Permission {
	t.Helper()
	now := time.Now().UTC()
	p := &authz.Permission{ID: id.NewUUIDv7(), CreatedAt: now, UpdatedAt: now}
	p.Name = "it_" + p.ID[len(p.ID)-12:] + ":read"
	require.NoError(t, s.Permissions().Upsert(context.Background(), p))
	t.Cleanup(func() {
		_, _ = s.Pool().Exec(context.Background(), `DELETE FROM permissions WHERE id = $1`, p.ID)
	})
	return p
}

func grant(t *testing.T, s *Store, scope tenant.Scope, roleID, permID string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.RolePermissions().Create(context.Background(), scope, &authz.RolePermissionAssignment{
		ID: id.NewUUIDv7(), RoleID: roleID, PermissionID: permID,
		AssignedAt: now, CreatedAt: now, UpdatedAt: now,
	}))
}

// TestPurpose: Validates that scoped reads never return rows of another tenant.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: A role of tenant A looked up under tenant B is reported as not found; same-named roles coexist.
// Test Case ID: ISO-01
func TestRoleRepository_TenantIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := seedTenant(t, s), seedTenant(t, s)

	roleA := seedRole(t, s, a, "editor")
	seedRole(t, s, b, "editor")

	_, err := s.Roles().GetByID(ctx, b, roleA.ID)
	assert.True(t, errors.Is(err, authz.ErrRoleNotFound))

	got, err := s.Roles().GetByID(ctx, a, roleA.ID)
	require.NoError(t, err)
	assert.Equal(t, a.TenantID(), got.TenantID)

	n, err := s.Roles().Count(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = s.Roles().Create(ctx, a, &authz.Role{ID: id.NewUUIDv7(), Name: "editor"})
	assert.ErrorIs(t, err, authz.ErrRoleAlreadyExists)
}

// TestPurpose: Validates that bulk deletes carry the tenant predicate.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: DeleteByRole and Delete called under tenant B with tenant A ids remove nothing.
// Test Case ID: ISO-02
func TestAssignmentRepository_BulkDeleteIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := seedTenant(t, s), seedTenant(t, s)
	perm := seedPermission(t, s)
	roleA := seedRole(t, s, a, "viewer")
	grant(t, s, a, roleA.ID, perm.ID)

	n, err := s.RolePermissions().DeleteByRole(ctx, b, roleA.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err := s.RolePermissions().Delete(ctx, b, roleA.ID, perm.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.RolePermissions().Get(ctx, a, roleA.ID, perm.ID)
	assert.NoError(t, err)

	n, err = s.RolePermissions().DeleteByRole(ctx, a, roleA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestPurpose: Validates the storage-level guarantees behind idempotent grants.
// Scope: Database Integration Test
// Expected: A duplicate pair yields ErrAssignmentAlreadyExists; a role of another tenant is rejected by the composite foreign key.
// Test Case ID: DB-01
func TestRolePermissionRepository_Constraints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := seedTenant(t, s), seedTenant(t, s)
	perm := seedPermission(t, s)
	roleA := seedRole(t, s, a, "auditor")
	grant(t, s, a, roleA.ID, perm.ID)

	err := s.RolePermissions().Create(ctx, a, &authz.RolePermissionAssignment{
		ID: id.NewUUIDv7(), RoleID: roleA.ID, PermissionID: perm.ID,
	})
	assert.ErrorIs(t, err, authz.ErrAssignmentAlreadyExists)

	err = s.RolePermissions().Create(ctx, b, &authz.RolePermissionAssignment{
		ID: id.NewUUIDv7(), RoleID: roleA.ID, PermissionID: perm.ID,
	})
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	list, err := s.RolePermissions().ListByRole(ctx, a, roleA.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestPurpose: Validates that user role assignments reject accounts of another tenant.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: Creating an assignment under tenant A for an account of tenant B fails with ErrAccountNotFound.
// Test Case ID: DB-02
func TestUserRoleRepository_CrossTenantAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := seedTenant(t, s), seedTenant(t, s)
	roleA := seedRole(t, s, a, "member")

	acc := &identity.UserAccount{ID: id.NewUUIDv7(), Username: "bob", Email: "bob@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, s.Accounts().Create(ctx, b, acc))

	err := s.UserRoles().Create(ctx, a, &authz.UserRoleAssignment{
		ID: id.NewUUIDv7(), UserAccountID: acc.ID, RoleID: roleA.ID,
	})
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

// TestPurpose: Validates that a failing transaction leaves no partial writes.
// Scope: Database Integration Test
// Expected: A role created inside a rolled back transaction is not visible afterwards.
// Test Case ID: DB-03
func TestDB_WithinTxRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := seedTenant(t, s)
	boom := errors.New("boom")

	var roleID string
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		role := &authz.Role{ID: id.NewUUIDv7(), Name: "transient"}
		if err := s.Roles().Create(ctx, a, role); err != nil {
			return err
		}
		roleID = role.ID
		return s.WithinTx(ctx, func(ctx context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Roles().GetByID(ctx, a, roleID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)
}

// TestPurpose: Validates that writes into a missing tenant and deletes of a role still referenced map to domain errors.
// Scope: Database Integration Test
// Security: No internal error leakage for client-reachable constraint violations
// Expected: Role and account creates under an unknown tenant yield ErrTenantNotFound; deleting a granted role yields ErrRoleInUse.
// Test Case ID: DB-05
func TestRepositories_ConstraintMapping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ghost, err := tenant.NewScope(id.NewUUIDv7())
	require.NoError(t, err)
	err = s.Roles().Create(ctx, ghost, &authz.Role{ID: id.NewUUIDv7(), Name: "editor", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	err = s.Accounts().Create(ctx, ghost, &identity.UserAccount{
		ID: id.NewUUIDv7(), Username: "ghost", Email: "ghost@example.com", PasswordHash: "x",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	a := seedTenant(t, s)
	role := seedRole(t, s, a, "granted")
	grant(t, s, a, role.ID, seedPermission(t, s).ID)
	err = s.Roles().Delete(ctx, a, role.ID)
	assert.ErrorIs(t, err, authz.ErrRoleInUse)
}
