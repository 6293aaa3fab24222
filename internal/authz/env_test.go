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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/store/memory"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// env wires the directory services over one in-memory store.
type env struct {
	store     *memory.Store
	tenants   *tenant.Service
	accounts  *identity.Service
	roles     *authz.RoleService
	rolePerms *authz.RolePermissionService
	userRoles *authz.UserRoleService
}

func newEnv(t *testing.T, opts ...authz.Option) *env {
	t.Helper()
	st, err := memory.New()
	require.NoError(t, err)
	require.NoError(t, authz.Bootstrap(context.Background(), st, authz.PermissionCatalog))

	auditLogger := audit.NopLogger{}
	tenants := tenant.NewService(st.Tenants(), st, authz.SystemRoleProvisioner{Store: st}, auditLogger)
	hasher := identity.NewPasswordHasher(1024, 1, 1, 16, 32)
	return &env{
		store:     st,
		tenants:   tenants,
		accounts:  identity.NewService(st.Accounts(), st, hasher, tenants, auditLogger),
		roles:     authz.NewRoleService(st, tenants, auditLogger, opts...),
		rolePerms: authz.NewRolePermissionService(st, tenants, auditLogger, opts...),
		userRoles: authz.NewUserRoleService(st, st.Accounts(), tenants, auditLogger, opts...),
	}
}

// tenantCtx creates a tenant and returns a request context resolved to it.
func (e *env) tenantCtx(t *testing.T, name string) context.Context {
	t.Helper()
	tn, err := e.tenants.Create(context.Background(), tenant.CreateInput{Name: name})
	require.NoError(t, err)
	return tenant.WithContext(context.Background(), tenant.Context{TenantID: tn.ID, Source: tenant.SourceHeader})
}

func (e *env) user(t *testing.T, ctx context.Context, username string) *identity.UserAccount {
	t.Helper()
	u, err := e.accounts.Create(ctx, identity.AccountInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	return u
}

func (e *env) permission(t *testing.T, name string) *authz.Permission {
	t.Helper()
	p, err := e.store.Permissions().GetByName(context.Background(), name)
	require.NoError(t, err)
	return p
}
