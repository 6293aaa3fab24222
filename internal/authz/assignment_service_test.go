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

package authz_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// TestPurpose: Validates idempotent grant of a role↔permission pair.
// Scope: Unit Test
// Security: Retry-safe authorization graph mutation
// Expected: Second grant returns the first assignment record; exactly one row exists.
// Test Case ID: AZ-RP-01
func TestRolePermissionService_Grant_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := e.tenantCtx(t, "T1")
	scope, _ := tenant.Require(ctx)
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	perm := e.permission(t, authz.PermDocumentWrite)

	first, created, err := e.rolePerms.Grant(ctx, r.ID, perm.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, scope.TenantID(), first.TenantID)

	second, created, err := e.rolePerms.Grant(ctx, r.ID, perm.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	rows, err := e.store.RolePermissions().ListByRole(ctx, scope, r.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// TestPurpose: Validates grant, list and revoke of doc:write on role editor end to end.
// Scope: Unit Test
// Security: Authorization graph correctness
// Expected: listForRole returns exactly doc:write after grant and nothing after revoke; a second revoke reports not removed.
// Test Case ID: AZ-RP-02
func TestRolePermissionService_GrantListRevoke(t *testing.T) {
	e := newEnv(t)
	ctx := e.tenantCtx(t, "T1")
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	perm := e.permission(t, authz.PermDocumentWrite)

	_, _, err = e.rolePerms.Grant(ctx, r.ID, perm.ID)
	require.NoError(t, err)

	perms, err := e.rolePerms.ListForRole(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "doc:write", perms[0].Name)

	removed, err := e.rolePerms.Revoke(ctx, r.ID, perm.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	perms, err = e.rolePerms.ListForRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	removed, err = e.rolePerms.Revoke(ctx, r.ID, perm.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

// TestPurpose: Validates that revoking a never-granted pair is not an error.
// Scope: Unit Test
// Security: Retry-safe authorization graph mutation
// Expected: removed=false, nil error; malformed permission ids behave the same.
// Test Case ID: AZ-RP-03
func TestRolePermissionService_Revoke_NeverGranted(t *testing.T) {
	e := newEnv(t)
	ctx := e.tenantCtx(t, "T1")
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)

	removed, err := e.rolePerms.Revoke(ctx, r.ID, e.permission(t, authz.PermDocumentRead).ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = e.rolePerms.Revoke(ctx, r.ID, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRolePermissionService_Grant_NotFound(t *testing.T) {
	e := newEnv(t)
	ctxA := e.tenantCtx(t, "T1")
	ctxB := e.tenantCtx(t, "T2")
	r, err := e.roles.Create(ctxA, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	perm := e.permission(t, authz.PermDocumentWrite)

	_, _, err = e.rolePerms.Grant(ctxA, r.ID, id.NewUUIDv7())
	assert.ErrorIs(t, err, authz.ErrPermissionNotFound)

	_, _, err = e.rolePerms.Grant(ctxB, r.ID, perm.ID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	_, err = e.rolePerms.Revoke(ctxB, r.ID, perm.ID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	_, err = e.rolePerms.ListForRole(ctxB, r.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRolePermissionService_ListAllGlobal(t *testing.T) {
	e := newEnv(t)

	perms, err := e.rolePerms.ListAllGlobal(context.Background())
	require.NoError(t, err)
	assert.Len(t, perms, len(authz.PermissionCatalog))
}

// TestPurpose: Validates that concurrent grants of the same pair converge on a single row.
// Scope: Unit Test
// Security: Store-level uniqueness as last line of defense
// Expected: All callers succeed with the same assignment id; exactly one created=true.
// Test Case ID: AZ-RP-04
func TestRolePermissionService_Grant_Concurrent(t *testing.T) {
	e := newEnv(t)
	ctx := e.tenantCtx(t, "T1")
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	perm := e.permission(t, authz.PermDocumentWrite)

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	createdFlags := make([]bool, n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, created, err := e.rolePerms.Grant(ctx, r.ID, perm.ID)
			errsOut[i] = err
			if a != nil {
				ids[i] = a.ID
			}
			createdFlags[i] = created
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errsOut[i])
		assert.Equal(t, ids[0], ids[i])
		if createdFlags[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
}

// TestPurpose: Validates user↔role assignment isolation end to end.
// Scope: Unit Test
// Security: Tenant isolation and anti-enumeration
// Expected: listRolesForUser for a T1 user under T2 fails NOT_FOUND although the id is well formed.
// Test Case ID: AZ-UR-01
func TestUserRoleService_CrossTenantUser_NotFound(t *testing.T) {
	e := newEnv(t)
	ctx1 := e.tenantCtx(t, "T1")
	ctx2 := e.tenantCtx(t, "T2")
	r, err := e.roles.Create(ctx1, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	u := e.user(t, ctx1, "alice")

	_, created, err := e.userRoles.Grant(ctx1, u.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, created)

	roles, err := e.userRoles.ListRolesForUser(ctx1, u.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Name)

	_, err = e.userRoles.ListRolesForUser(ctx2, u.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestUserRoleService_Grant_IndependentNotFound(t *testing.T) {
	e := newEnv(t)
	ctx1 := e.tenantCtx(t, "T1")
	ctx2 := e.tenantCtx(t, "T2")
	r1, err := e.roles.Create(ctx1, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	u1 := e.user(t, ctx1, "alice")
	u2 := e.user(t, ctx2, "bob")

	// Role of another tenant.
	_, _, err = e.userRoles.Grant(ctx2, u2.ID, r1.ID)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	// User of another tenant.
	_, _, err = e.userRoles.Grant(ctx2, u1.ID, r1.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	a, _, err := e.userRoles.Grant(ctx1, u1.ID, r1.ID)
	require.NoError(t, err)
	again, created, err := e.userRoles.Grant(ctx1, u1.ID, r1.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, again.ID)

	removed, err := e.userRoles.Revoke(ctx2, u1.ID, r1.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.False(t, removed)

	removed, err = e.userRoles.Revoke(ctx1, u1.ID, r1.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

type fakeCache struct {
	mu          sync.Mutex
	gens        map[string]int64
	entries     map[string][]authz.Permission
	invalidated int
	// beforeSet runs once, ahead of the next Set.
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{gens: map[string]int64{}, entries: map[string][]authz.Permission{}}
}

func fakeKey(scope tenant.Scope, gen int64, userID string) string {
	return fmt.Sprintf("%s/%d/%s", scope.TenantID(), gen, userID)
}

func (c *fakeCache) Get(_ context.Context, scope tenant.Scope, userID string) ([]authz.Permission, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[scope.TenantID()]
	p, ok := c.entries[fakeKey(scope, gen, userID)]
	return p, gen, ok, nil
}

func (c *fakeCache) Set(_ context.Context, scope tenant.Scope, userID string, gen int64, perms []authz.Permission) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fakeKey(scope, gen, userID)] = perms
	return nil
}

func (c *fakeCache) InvalidateTenant(_ context.Context, scope tenant.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[scope.TenantID()]++
	c.invalidated++
	return nil
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) RecordGrant(ctx context.Context, edge string, created bool) {
	m.Called(edge, created)
}

func (m *mockObserver) RecordRevoke(ctx context.Context, edge string, removed bool) {
	m.Called(edge, removed)
}

func (m *mockObserver) RecordCacheLookup(ctx context.Context, hit bool) {
	m.Called(hit)
}

// TestPurpose: Validates effective permission evaluation and cache invalidation on graph changes.
// Scope: Unit Test
// Security: Authorization decisions never served from stale grants
// Expected: HasPermission follows grants and revokes; inactive accounts hold nothing.
// Test Case ID: AZ-UR-02
func TestUserRoleService_HasPermission(t *testing.T) {
	cache := newFakeCache()
	obs := new(mockObserver)
	obs.On("RecordGrant", mock.Anything, mock.Anything).Return()
	obs.On("RecordRevoke", mock.Anything, mock.Anything).Return()
	obs.On("RecordCacheLookup", mock.Anything).Return()

	e := newEnv(t, authz.WithCache(cache), authz.WithObserver(obs))
	ctx := e.tenantCtx(t, "T1")
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	u := e.user(t, ctx, "alice")
	write := e.permission(t, authz.PermDocumentWrite)

	ok, err := e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = e.userRoles.Grant(ctx, u.ID, r.ID)
	require.NoError(t, err)
	_, _, err = e.rolePerms.Grant(ctx, r.ID, write.ID)
	require.NoError(t, err)

	ok, err = e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.True(t, ok)

	// Served from cache the second time.
	ok, err = e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.True(t, ok)
	obs.AssertCalled(t, "RecordCacheLookup", true)

	_, err = e.rolePerms.Revoke(ctx, r.ID, write.ID)
	require.NoError(t, err)
	ok, err = e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, cache.invalidated, 3)

	_, _, err = e.rolePerms.Grant(ctx, r.ID, write.ID)
	require.NoError(t, err)
	_, err = e.accounts.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	perms, err := e.userRoles.ListPermissionsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	obs.AssertCalled(t, "RecordGrant", authz.EdgeUserRole, true)
	obs.AssertCalled(t, "RecordRevoke", authz.EdgeRolePermission, true)
}

func TestUserRoleService_ListPermissionsForUser_Union(t *testing.T) {
	e := newEnv(t)
	ctx := e.tenantCtx(t, "T1")
	scope, _ := tenant.Require(ctx)
	u := e.user(t, ctx, "alice")

	member, err := e.store.Roles().GetByName(ctx, scope, authz.RoleTenantMember)
	require.NoError(t, err)
	admin, err := e.store.Roles().GetByName(ctx, scope, authz.RoleTenantAdmin)
	require.NoError(t, err)
	_, _, err = e.userRoles.Grant(ctx, u.ID, member.ID)
	require.NoError(t, err)
	_, _, err = e.userRoles.Grant(ctx, u.ID, admin.ID)
	require.NoError(t, err)

	perms, err := e.userRoles.ListPermissionsForUser(ctx, u.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	// tenant_member's permissions are a subset of tenant_admin's.
	assert.Len(t, names, len(authz.SystemRoles[0].Permissions))
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, authz.PermRoleAssign)
}

// TestPurpose: Validates that permissions computed before a revoke are not served after it.
// Scope: Unit Test
// Security: Authorization decisions never served from stale grants
// Expected: A cache write racing a revoke stays unreachable; the next check reflects the revoke.
// Test Case ID: AZ-UR-03
func TestUserRoleService_StaleCacheWriteAfterRevoke(t *testing.T) {
	cache := newFakeCache()
	e := newEnv(t, authz.WithCache(cache))
	ctx := e.tenantCtx(t, "T1")
	r, err := e.roles.Create(ctx, authz.RoleInput{Name: "editor"})
	require.NoError(t, err)
	u := e.user(t, ctx, "alice")
	write := e.permission(t, authz.PermDocumentWrite)
	_, _, err = e.userRoles.Grant(ctx, u.ID, r.ID)
	require.NoError(t, err)
	_, _, err = e.rolePerms.Grant(ctx, r.ID, write.ID)
	require.NoError(t, err)

	// The revoke commits and invalidates between the read and the write-back.
	cache.beforeSet = func() {
		_, err := e.rolePerms.Revoke(ctx, r.ID, write.ID)
		require.NoError(t, err)
	}
	ok, err := e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.True(t, ok, "the racing read saw the grant")

	ok, err = e.userRoles.HasPermission(ctx, u.ID, "doc:write")
	require.NoError(t, err)
	assert.False(t, ok)
}
