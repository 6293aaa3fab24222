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


// Package grpc exposes the directory over gRPC. Role and assignment
// operations are served as tenantdir.v1.Directory with a JSON codec, next to
// the standard health service; the tenant comes from request metadata.
package grpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// MetadataTenantID is the explicit tenant metadata key.
const MetadataTenantID = "x-tenant-id"

// TokenParser verifies a bearer token and returns its claims.
type TokenParser interface {
	Parse(raw string) (tenant.Claims, error)
}

// TenantInterceptor attaches the tenant context to inbound calls.
type TenantInterceptor struct {
	resolver    *tenant.Resolver
	parser      TokenParser
	allowHeader bool
}

// NewTenantInterceptor creates an interceptor. parser may be nil, in which
// case only the x-tenant-id metadata is consulted.
func NewTenantInterceptor(resolver *tenant.Resolver, parser TokenParser, allowHeader bool) *TenantInterceptor {
	return &TenantInterceptor{resolver: resolver, parser: parser, allowHeader: allowHeader}
}

// Unary returns the unary server interceptor.
func (ti *TenantInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := ti.attach(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns the stream server interceptor.
func (ti *TenantInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := ti.attach(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &tenantStream{ServerStream: ss, ctx: ctx})
	}
}

func (ti *TenantInterceptor) attach(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	var claims tenant.Claims
	if ti.parser != nil {
		if raw, ok := bearer(md); ok {
			c, err := ti.parser.Parse(raw)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
			}
			claims = c
		}
	}

	header := ""
	if ti.allowHeader {
		header = first(md, MetadataTenantID)
	}
	ctx, tc := ti.resolver.Attach(ctx, claims, header)
	if tc.TenantID != "" {
		slog.DebugContext(ctx, "tenant resolved",
			logger.TenantID(tc.TenantID),
			logger.ResolutionSource(string(tc.Source)),
		)
	}
	return ctx, nil
}

func bearer(md metadata.MD) (string, bool) {
	scheme, token, ok := strings.Cut(first(md, "authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

type tenantStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tenantStream) Context() context.Context {
	return s.ctx
}
