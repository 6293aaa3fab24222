package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

func newTestCache(t *testing.T) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPermissionCache(client, time.Minute), mr
}

func newScope(t *testing.T) tenant.Scope {
	t.Helper()
	scope, err := tenant.NewScope(id.NewUUIDv7())
	require.NoError(t, err)
	return scope
}

func TestPermissionCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	scope := newScope(t)

	_, gen, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	perms := []authz.Permission{{ID: "p1", Name: "doc:read"}}
	require.NoError(t, c.Set(ctx, scope, "u1", gen, perms))

	got, _, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc:read", got[0].Name)
}

func TestPermissionCache_EmptySetIsAHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	scope := newScope(t)

	require.NoError(t, c.Set(ctx, scope, "u1", 0, nil))
	got, _, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestPermissionCache_InvalidateTenant(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	a, b := newScope(t), newScope(t)

	require.NoError(t, c.Set(ctx, a, "u1", 0, []authz.Permission{{Name: "doc:read"}}))
	require.NoError(t, c.Set(ctx, b, "u1", 0, []authz.Permission{{Name: "doc:write"}}))

	require.NoError(t, c.InvalidateTenant(ctx, a))

	_, gen, ok, err := c.Get(ctx, a, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "invalidated tenant must miss")
	assert.Equal(t, int64(1), gen)

	got, _, ok, err := c.Get(ctx, b, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "other tenant must keep its entries")
	assert.Equal(t, "doc:write", got[0].Name)
}

func TestPermissionCache_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	scope := newScope(t)

	require.NoError(t, c.Set(ctx, scope, "u1", 0, []authz.Permission{{Name: "doc:read"}}))
	mr.FastForward(2 * time.Minute)

	_, _, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionCache_ZeroScope(t *testing.T) {
	c, _ := newTestCache(t)
	_, _, _, err := c.Get(context.Background(), tenant.Scope{}, "u1")
	assert.Equal(t, errs.KindContextMissing, errs.KindOf(err))
}

// A reader that missed, computed permissions, and writes them back after a
// concurrent invalidation must not make its stale value visible.
func TestPermissionCache_StaleSetAfterInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	scope := newScope(t)

	_, gen, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.InvalidateTenant(ctx, scope))
	require.NoError(t, c.Set(ctx, scope, "u1", gen, []authz.Permission{{Name: "doc:write"}}))

	_, cur, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "stale write must stay unreachable")
	assert.Equal(t, gen+1, cur)

	require.NoError(t, c.Set(ctx, scope, "u1", cur, []authz.Permission{}))
	got, _, ok, err := c.Get(ctx, scope, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}
