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

package tenant

import (
	"context"
	"log/slog"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
)

// Source records which channel produced the tenant of a request.
type Source string

const (
	SourceNone   Source = "none"
	SourceClaim  Source = "claim"
	SourceHeader Source = "header"
	// SourceSystem marks contexts built by the process itself (bootstrap, provisioning, tests).
	SourceSystem Source = "system"
)

// Context is the tenant resolved for one request. It is immutable; attach it
// to a context.Context with WithContext.
type Context struct {
	TenantID string
	Source   Source
}

type contextKey struct{}

// ErrContextMissing is returned when a tenant-scoped operation runs without a
// resolved tenant.
var ErrContextMissing = errs.New(errs.KindContextMissing, "tenant not resolved")

// WithContext returns a copy of ctx carrying tc. Replacing an already attached
// tenant with a different one is allowed but logged.
func WithContext(ctx context.Context, tc Context) context.Context {
	if prev, ok := FromContext(ctx); ok && prev.TenantID != tc.TenantID {
		slog.WarnContext(ctx, "tenant context overwritten",
			slog.String("previous_tenant_id", prev.TenantID),
			slog.String("tenant_id", tc.TenantID),
			slog.String("source", string(tc.Source)),
		)
	}
	return context.WithValue(ctx, contextKey{}, tc)
}

// WithTenant attaches tenantID with SourceSystem.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return WithContext(ctx, Context{TenantID: tenantID, Source: SourceSystem})
}

// FromContext returns the tenant attached to ctx, if any.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	if !ok || tc.TenantID == "" {
		return Context{}, false
	}
	return tc, true
}

// Scope is the explicit tenant predicate handed to every tenant-scoped
// repository method. The zero Scope matches nothing and is rejected by stores.
type Scope struct {
	tenantID string
}

// NewScope builds a Scope for a known tenant id.
func NewScope(tenantID string) (Scope, error) {
	if tenantID == "" {
		return Scope{}, ErrContextMissing
	}
	norm, err := id.Normalize(tenantID)
	if err != nil {
		return Scope{}, errs.Validation("tenant.NewScope", "tenant id must be a UUID")
	}
	return Scope{tenantID: norm}, nil
}

// Require returns the Scope of the tenant attached to ctx, or ErrContextMissing.
func Require(ctx context.Context) (Scope, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return Scope{}, ErrContextMissing
	}
	s, err := NewScope(tc.TenantID)
	if err != nil {
		return Scope{}, ErrContextMissing
	}
	return s, nil
}

// TenantID returns the tenant the scope restricts to.
func (s Scope) TenantID() string { return s.tenantID }

// IsZero reports whether s was never initialised.
func (s Scope) IsZero() bool { return s.tenantID == "" }

// Check returns ErrContextMissing, annotated with op, for a zero scope.
func (s Scope) Check(op string) error {
	if s.IsZero() {
		return errs.Wrap(op, ErrContextMissing)
	}
	return nil
}

// Contains reports whether a row owned by tenantID is visible through s.
func (s Scope) Contains(tenantID string) bool {
	return !s.IsZero() && s.tenantID == tenantID
}
