// Package redis caches effective permissions in Redis. Entries are keyed by a
// per-tenant generation counter so that invalidating a tenant is one INCR.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

const keyPrefix = "tenantdir:perm"

// Connect creates a Redis client and verifies it answers.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache/redis: ping: %w", err)
	}
	return client, nil
}

// PermissionCache implements authz.PermissionCache.
type PermissionCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewPermissionCache returns a cache whose entries expire after ttl.
func NewPermissionCache(client *goredis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

var _ authz.PermissionCache = (*PermissionCache)(nil)

func generationKey(scope tenant.Scope) string {
	return keyPrefix + ":gen:" + scope.TenantID()
}

func entryKey(scope tenant.Scope, gen int64, userID string) string {
	return keyPrefix + ":" + scope.TenantID() + ":" + strconv.FormatInt(gen, 10) + ":" + userID
}

// generation returns the tenant's current generation; a missing counter is 0.
func (c *PermissionCache) generation(ctx context.Context, scope tenant.Scope) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(scope)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the cached permissions of userID in the tenant of scope, along
// with the generation it looked under.
func (c *PermissionCache) Get(ctx context.Context, scope tenant.Scope, userID string) ([]authz.Permission, int64, bool, error) {
	if err := scope.Check("redis.GetPermissions"); err != nil {
		return nil, 0, false, err
	}
	gen, err := c.generation(ctx, scope)
	if err != nil {
		return nil, 0, false, fmt.Errorf("cache/redis: generation: %w", err)
	}
	payload, err := c.client.Get(ctx, entryKey(scope, gen, userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("cache/redis: get: %w", err)
	}
	var perms []authz.Permission
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, gen, false, fmt.Errorf("cache/redis: decode: %w", err)
	}
	return perms, gen, true, nil
}

// Set stores perms under gen, the generation returned by the Get that missed.
// After an InvalidateTenant that key is no longer read.
func (c *PermissionCache) Set(ctx context.Context, scope tenant.Scope, userID string, gen int64, perms []authz.Permission) error {
	if err := scope.Check("redis.SetPermissions"); err != nil {
		return err
	}
	if perms == nil {
		perms = []authz.Permission{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("cache/redis: encode: %w", err)
	}
	if err := c.client.Set(ctx, entryKey(scope, gen, userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache/redis: set: %w", err)
	}
	return nil
}

// InvalidateTenant bumps the tenant's generation. Older entries become
// unreachable and expire on their own.
func (c *PermissionCache) InvalidateTenant(ctx context.Context, scope tenant.Scope) error {
	if err := scope.Check("redis.InvalidateTenant"); err != nil {
		return err
	}
	if err := c.client.Incr(ctx, generationKey(scope)).Err(); err != nil {
		return fmt.Errorf("cache/redis: bump: %w", err)
	}
	return nil
}
