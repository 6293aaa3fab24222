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

	"github.com/opentrusty/tenantdir/internal/id"
)

const (
	// ClaimTenantID is the identity claim carrying the tenant.
	ClaimTenantID = "tenant_id"
	// HeaderTenantID is the explicit HTTP header channel.
	HeaderTenantID = "X-Tenant-ID"
	// MetadataTenantID is the explicit gRPC metadata channel.
	MetadataTenantID = "x-tenant-id"
)

// Claims are the authenticated identity claims of a caller.
type Claims map[string]any

// ResolutionObserver receives one call per resolution.
type ResolutionObserver interface {
	RecordResolution(ctx context.Context, source string)
}

// Resolver determines the tenant of an inbound request. Resolution is lenient:
// malformed values are logged and skipped, and an unresolved request proceeds
// with no tenant so tenant-agnostic endpoints keep working.
type Resolver struct {
	observer ResolutionObserver
}

// NewResolver creates a resolver. observer may be nil.
func NewResolver(observer ResolutionObserver) *Resolver {
	return &Resolver{observer: observer}
}

// Resolve applies the resolution order: the tenant_id claim first, then the
// explicit header value. The returned Context has SourceNone and an empty id
// when neither channel yields a well-formed tenant id.
func (r *Resolver) Resolve(ctx context.Context, claims Claims, header string) Context {
	tc := r.resolve(ctx, claims, header)
	if r.observer != nil {
		r.observer.RecordResolution(ctx, string(tc.Source))
	}
	return tc
}

func (r *Resolver) resolve(ctx context.Context, claims Claims, header string) Context {
	if raw, ok := claims[ClaimTenantID]; ok {
		s, _ := raw.(string)
		if tid, err := id.Normalize(s); err == nil {
			return Context{TenantID: tid, Source: SourceClaim}
		}
		slog.WarnContext(ctx, "ignoring malformed tenant claim", slog.Any("value", raw))
	}

	if header != "" {
		if tid, err := id.Normalize(header); err == nil {
			return Context{TenantID: tid, Source: SourceHeader}
		}
		slog.WarnContext(ctx, "ignoring malformed tenant header", slog.String("value", header))
	}

	return Context{Source: SourceNone}
}

// Attach resolves the tenant and returns ctx carrying it when one was found.
func (r *Resolver) Attach(ctx context.Context, claims Claims, header string) (context.Context, Context) {
	tc := r.Resolve(ctx, claims, header)
	if tc.TenantID == "" {
		return ctx, tc
	}
	return WithContext(ctx, tc), tc
}
