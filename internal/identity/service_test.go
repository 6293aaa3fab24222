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

package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/store/memory"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

func newService(t *testing.T) (*identity.Service, context.Context, context.Context) {
	t.Helper()
	st, err := memory.New()
	require.NoError(t, err)
	tenants := tenant.NewService(st.Tenants(), st, nil, audit.NopLogger{})

	ctxs := make([]context.Context, 0, 2)
	for _, name := range []string{"T1", "T2"} {
		tn, err := tenants.Create(context.Background(), tenant.CreateInput{Name: name})
		require.NoError(t, err)
		ctxs = append(ctxs, tenant.WithTenant(context.Background(), tn.ID))
	}
	hasher := identity.NewPasswordHasher(1024, 1, 1, 16, 32)
	return identity.NewService(st.Accounts(), st, hasher, tenants, audit.NopLogger{}), ctxs[0], ctxs[1]
}

// TestPurpose: Validates account creation, password hashing and per-tenant uniqueness.
// Scope: Unit Test
// Security: Credential storage and tenant isolation of principals
// Expected: Password stored as argon2id hash; duplicate username in T1 fails CONFLICT; same username in T2 succeeds.
// Test Case ID: ID-01
func TestIdentity_Service_Create(t *testing.T) {
	svc, ctx1, ctx2 := newService(t)

	a, err := svc.Create(ctx1, identity.AccountInput{
		Username: " alice ",
		Email:    "Alice@Example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.True(t, a.IsActive)
	assert.Contains(t, a.PasswordHash, "$argon2id$")

	_, err = svc.Create(ctx1, identity.AccountInput{Username: "alice", Email: "x@example.com", Password: "correct-horse-battery"})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = svc.Create(ctx2, identity.AccountInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse-battery"})
	assert.NoError(t, err)

	_, err = svc.Create(ctx1, identity.AccountInput{Username: "bob", Email: "not-an-email", Password: "short"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = svc.Create(context.Background(), identity.AccountInput{Username: "carol", Email: "c@example.com", Password: "correct-horse-battery"})
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
}

// TestPurpose: Validates that accounts are invisible across tenants.
// Scope: Unit Test
// Security: Tenant isolation and anti-enumeration
// Expected: Get under T2 for a T1 account fails NOT_FOUND; lists stay per-tenant.
// Test Case ID: ID-02
func TestIdentity_Service_Isolation(t *testing.T) {
	svc, ctx1, ctx2 := newService(t)
	a, err := svc.Create(ctx1, identity.AccountInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, err = svc.Get(ctx2, a.ID)
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)

	list, err := svc.List(ctx2)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := svc.Get(ctx1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Username, got.Username)

	_, err = svc.Get(ctx1, "garbage")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestIdentity_Service_SetActiveAndVerify(t *testing.T) {
	svc, ctx1, _ := newService(t)
	a, err := svc.Create(ctx1, identity.AccountInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, ok, err := svc.VerifyPassword(ctx1, "alice", "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = svc.VerifyPassword(ctx1, "alice", "wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := svc.SetActive(ctx1, a.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, ok, err = svc.VerifyPassword(ctx1, "alice", "correct-horse-battery")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SetActive(ctx1, id.NewUUIDv7(), true)
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}
