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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

type fixture struct {
	store *Store
	a, b  tenant.Scope
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	scopes := make([]tenant.Scope, 0, 2)
	for _, name := range []string{"tenant-a", "tenant-b"} {
		tn := &tenant.Tenant{ID: id.NewUUIDv7(), Name: name, Status: tenant.StatusActive}
		require.NoError(t, st.Tenants().Create(ctx, tn))
		scope, err := tenant.NewScope(tn.ID)
		require.NoError(t, err)
		scopes = append(scopes, scope)
	}
	return fixture{store: st, a: scopes[0], b: scopes[1]}
}

func (f fixture) role(t *testing.T, scope tenant.Scope, name string) *authz.Role {
	t.Helper()
	now := time.Now().UTC()
	r := &authz.Role{ID: id.NewUUIDv7(), TenantID: scope.TenantID(), Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.store.Roles().Create(context.Background(), scope, r))
	return r
}

func (f fixture) permission(t *testing.T, name string) *authz.Permission {
	t.Helper()
	p := &authz.Permission{ID: id.NewUUIDv7(), Name: name}
	require.NoError(t, f.store.Permissions().Upsert(context.Background(), p))
	return p
}

func (f fixture) account(t *testing.T, scope tenant.Scope, username string) *identity.UserAccount {
	t.Helper()
	a := &identity.UserAccount{ID: id.NewUUIDv7(), Username: username, Email: username + "@example.com", IsActive: true}
	require.NoError(t, f.store.Accounts().Create(context.Background(), scope, a))
	return a
}

func (f fixture) grantPermission(t *testing.T, scope tenant.Scope, roleID, permID string) {
	t.Helper()
	a := &authz.RolePermissionAssignment{ID: id.NewUUIDv7(), RoleID: roleID, PermissionID: permID}
	require.NoError(t, f.store.RolePermissions().Create(context.Background(), scope, a))
}

func (f fixture) grantRole(t *testing.T, scope tenant.Scope, userID, roleID string) {
	t.Helper()
	a := &authz.UserRoleAssignment{ID: id.NewUUIDv7(), UserAccountID: userID, RoleID: roleID}
	require.NoError(t, f.store.UserRoles().Create(context.Background(), scope, a))
}

// TestPurpose: Validates that a role owned by tenant A is invisible through tenant B's scope.
// Scope: Unit Test
// Security: Tenant isolation and anti-enumeration
// Expected: GetByID/List/Count under B return not-found or empty; A still sees the role.
// Test Case ID: MEM-01
func TestMemory_Roles_Isolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.role(t, f.a, "editor")

	_, err := f.store.Roles().GetByID(ctx, f.b, r.ID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	list, err := f.store.Roles().List(ctx, f.b)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := f.store.Roles().Count(ctx, f.a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	byIDs, err := f.store.Roles().ListByIDs(ctx, f.b, []string{r.ID})
	require.NoError(t, err)
	assert.Empty(t, byIDs)

	// Same name is free in the other tenant.
	f.role(t, f.b, "editor")
	err = f.store.Roles().Create(ctx, f.a, &authz.Role{ID: id.NewUUIDv7(), Name: "editor"})
	assert.ErrorIs(t, err, authz.ErrRoleAlreadyExists)
}

// TestPurpose: Validates that bulk and single deletes cannot cross tenants even when handed ids of another tenant.
// Scope: Unit Test
// Security: Tenant isolation of bulk write predicates
// Expected: Deletes under tenant B using tenant A's role/user/permission ids remove nothing; A's rows survive.
// Test Case ID: MEM-02
func TestMemory_BulkDeletes_CannotCrossTenants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role := f.role(t, f.a, "editor")
	perm := f.permission(t, "doc:write")
	user := f.account(t, f.a, "alice")
	f.grantPermission(t, f.a, role.ID, perm.ID)
	f.grantRole(t, f.a, user.ID, role.ID)

	n, err := f.store.RolePermissions().DeleteByRole(ctx, f.b, role.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.store.UserRoles().DeleteByRole(ctx, f.b, role.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err := f.store.RolePermissions().Delete(ctx, f.b, role.ID, perm.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = f.store.UserRoles().Delete(ctx, f.b, user.ID, role.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	err = f.store.Roles().Delete(ctx, f.b, role.ID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	rps, err := f.store.RolePermissions().ListByRole(ctx, f.a, role.ID)
	require.NoError(t, err)
	assert.Len(t, rps, 1)
	urs, err := f.store.UserRoles().ListByUser(ctx, f.a, user.ID)
	require.NoError(t, err)
	assert.Len(t, urs, 1)
	_, err = f.store.Roles().GetByID(ctx, f.a, role.ID)
	assert.NoError(t, err)
}

// TestPurpose: Validates that every scoped repository method refuses a zero scope.
// Scope: Unit Test
// Security: Fail-closed isolation
// Expected: CONTEXT_MISSING from reads, writes and bulk deletes.
// Test Case ID: MEM-03
func TestMemory_ZeroScope_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var zero tenant.Scope

	_, err := f.store.Roles().List(ctx, zero)
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
	_, err = f.store.RolePermissions().DeleteByRole(ctx, zero, id.NewUUIDv7())
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
	_, err = f.store.UserRoles().Delete(ctx, zero, id.NewUUIDv7(), id.NewUUIDv7())
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
	_, err = f.store.Accounts().GetByID(ctx, zero, id.NewUUIDv7())
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
}

func TestMemory_Assignments_Unique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.role(t, f.a, "editor")
	perm := f.permission(t, "doc:write")
	f.grantPermission(t, f.a, role.ID, perm.ID)

	err := f.store.RolePermissions().Create(ctx, f.a, &authz.RolePermissionAssignment{
		ID: id.NewUUIDv7(), RoleID: role.ID, PermissionID: perm.ID,
	})
	assert.ErrorIs(t, err, authz.ErrAssignmentAlreadyExists)

	// A role of tenant A cannot receive an assignment stamped for tenant B.
	err = f.store.RolePermissions().Create(ctx, f.b, &authz.RolePermissionAssignment{
		ID: id.NewUUIDv7(), RoleID: role.ID, PermissionID: perm.ID,
	})
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)
}

func TestMemory_Accounts_Unique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, f.a, "alice")

	err := f.store.Accounts().Create(ctx, f.a, &identity.UserAccount{ID: id.NewUUIDv7(), Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, identity.ErrAccountAlreadyExists)
	err = f.store.Accounts().Create(ctx, f.a, &identity.UserAccount{ID: id.NewUUIDv7(), Username: "alice2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, identity.ErrAccountAlreadyExists)

	f.account(t, f.b, "alice")
}

func TestMemory_Permissions_UpsertKeepsID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.permission(t, "doc:read")

	again := &authz.Permission{ID: id.NewUUIDv7(), Name: "doc:read", Description: "Read documents"}
	require.NoError(t, f.store.Permissions().Upsert(ctx, again))
	assert.Equal(t, p.ID, again.ID)

	all, err := f.store.Permissions().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Read documents", all[0].Description)
}

func TestMemory_WithinTx_RollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.WithinTx(ctx, func(ctx context.Context) error {
		r := &authz.Role{ID: id.NewUUIDv7(), Name: "temp"}
		require.NoError(t, f.store.Roles().Create(ctx, f.a, r))
		// Visible inside the transaction.
		_, err := f.store.Roles().GetByID(ctx, f.a, r.ID)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	roles, err := f.store.Roles().List(ctx, f.a)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestMemory_TenantDelete_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.role(t, f.a, "editor")
	user := f.account(t, f.a, "alice")
	f.grantRole(t, f.a, user.ID, role.ID)
	other := f.role(t, f.b, "editor")

	require.NoError(t, f.store.Tenants().Delete(ctx, f.a.TenantID()))

	_, err := f.store.Tenants().GetByID(ctx, f.a.TenantID())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	urs, err := f.store.UserRoles().ListByUser(ctx, f.a, user.ID)
	require.NoError(t, err)
	assert.Empty(t, urs)
	_, err = f.store.Roles().GetByID(ctx, f.b, other.ID)
	assert.NoError(t, err)
}

func TestMemory_Tenants_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.store.Tenants().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	page, err := f.store.Tenants().List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, f.b.TenantID(), page[0].ID)

	err = f.store.Tenants().Create(ctx, &tenant.Tenant{ID: id.NewUUIDv7(), Name: "tenant-a"})
	assert.ErrorIs(t, err, tenant.ErrTenantAlreadyExists)
}

// TestPurpose: Validates that tenant-owned rows cannot be written into a tenant that does not exist.
// Scope: Unit Test
// Security: Referential integrity of tenant ownership
// Expected: Role, account and assignment creates under an unknown tenant fail with ErrTenantNotFound and store nothing.
// Test Case ID: MEM-04
func TestMemory_Create_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ghost, err := tenant.NewScope(id.NewUUIDv7())
	require.NoError(t, err)

	err = f.store.Roles().Create(ctx, ghost, &authz.Role{ID: id.NewUUIDv7(), Name: "editor"})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	err = f.store.Accounts().Create(ctx, ghost, &identity.UserAccount{ID: id.NewUUIDv7(), Username: "alice", Email: "alice@example.com"})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	err = f.store.RolePermissions().Create(ctx, ghost, &authz.RolePermissionAssignment{ID: id.NewUUIDv7(), RoleID: id.NewUUIDv7(), PermissionID: id.NewUUIDv7()})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	err = f.store.UserRoles().Create(ctx, ghost, &authz.UserRoleAssignment{ID: id.NewUUIDv7(), UserAccountID: id.NewUUIDv7(), RoleID: id.NewUUIDv7()})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	n, err := f.store.Roles().Count(ctx, ghost)
	require.NoError(t, err)
	assert.Zero(t, n)
}
