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

package authz

import (
	"context"

	"github.com/opentrusty/tenantdir/internal/tenant"
)

// PermissionCache stores the effective permissions of a user per tenant.
//
// Get reports the tenant generation it looked under, hit or miss. Set stores
// under the generation the caller observed, never the current one, so a value
// computed before an InvalidateTenant is unreachable once the call returns,
// even when Set lands after it.
type PermissionCache interface {
	Get(ctx context.Context, scope tenant.Scope, userID string) (perms []Permission, gen int64, hit bool, err error)
	Set(ctx context.Context, scope tenant.Scope, userID string, gen int64, perms []Permission) error
	InvalidateTenant(ctx context.Context, scope tenant.Scope) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, tenant.Scope, string) ([]Permission, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopCache) Set(context.Context, tenant.Scope, string, int64, []Permission) error { return nil }

func (NopCache) InvalidateTenant(context.Context, tenant.Scope) error { return nil }

// Edge names used when reporting graph mutations.
const (
	EdgeRolePermission = "role_permission"
	EdgeUserRole       = "user_role"
)

// Observer receives authorization graph events for metrics.
type Observer interface {
	RecordGrant(ctx context.Context, edge string, created bool)
	RecordRevoke(ctx context.Context, edge string, removed bool)
	RecordCacheLookup(ctx context.Context, hit bool)
}

type nopObserver struct{}

func (nopObserver) RecordGrant(context.Context, string, bool)  {}
func (nopObserver) RecordRevoke(context.Context, string, bool) {}
func (nopObserver) RecordCacheLookup(context.Context, bool)    {}

// Option configures the authorization services.
type Option func(*options)

type options struct {
	cache    PermissionCache
	observer Observer
}

// WithCache sets the effective-permission cache.
func WithCache(c PermissionCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{cache: NopCache{}, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
