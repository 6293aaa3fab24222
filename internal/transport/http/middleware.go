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


package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Tenant Resolution Principles:
// 1. The verified tenant_id claim wins over the X-Tenant-ID header
// 2. The {tenantID} path segment is never a source of isolation; it must
//    match the resolved tenant or the request is rejected
// 3. An unresolved request proceeds; tenant-scoped routes refuse it

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SecurityHeaders sets the standard hardening headers.
func SecurityHeaders(production bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	}).Handler
}

// TenantResolver attaches the tenant of the request, taken from the verified
// claims or, when allowed, the X-Tenant-ID header.
func TenantResolver(resolver *tenant.Resolver, allowHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := ""
			if allowHeader {
				header = r.Header.Get(tenant.HeaderTenantID)
			}
			ctx, tc := resolver.Attach(r.Context(), GetClaims(r.Context()), header)
			if tc.TenantID != "" {
				slog.DebugContext(ctx, "tenant resolved",
					logger.TenantID(tc.TenantID),
					logger.ResolutionSource(string(tc.Source)),
				)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant enforces that a tenant context is present.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := tenant.Require(r.Context()); err != nil {
			respondServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MatchPathTenant rejects requests whose {tenantID} path segment names a
// tenant other than the resolved one.
func MatchPathTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathID, err := id.Normalize(chi.URLParam(r, "tenantID"))
		if err != nil || pathID != GetTenantID(r.Context()) {
			slog.WarnContext(r.Context(), "path tenant does not match resolved tenant",
				slog.String("path_tenant_id", chi.URLParam(r, "tenantID")),
				logger.TenantID(GetTenantID(r.Context())),
			)
			respondServiceError(w, r, authz.ErrTenantMismatch)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = errs.New(errs.KindRefused, "permission denied")

// requirePermission allows the request only when the authenticated subject
// holds perm in the resolved tenant. It is a passthrough unless enforcement
// is enabled.
func (h *Handler) requirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !h.enforcePermissions {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == "" {
				respondServiceError(w, r, errPermissionDenied)
				return
			}
			ok, err := h.userRoles.HasPermission(r.Context(), subject, perm)
			if errs.Is(err, errs.KindNotFound) || (err == nil && !ok) {
				slog.WarnContext(r.Context(), "permission denied",
					logger.UserID(subject),
					logger.TenantID(GetTenantID(r.Context())),
					slog.String("permission", perm),
				)
				respondServiceError(w, r, errPermissionDenied)
				return
			}
			if err != nil {
				respondServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimPlatformAdmin is the boolean token claim that grants tenant
// administration across the directory.
const ClaimPlatformAdmin = "platform_admin"

func isPlatformAdmin(r *http.Request) bool {
	admin, _ := GetClaims(r.Context())[ClaimPlatformAdmin].(bool)
	return admin
}

// requirePlatformAdmin guards tenant administration. With ownTenant set, a
// caller resolved to the tenant named in the path may pass as well. It is a
// passthrough unless enforcement is enabled.
func (h *Handler) requirePlatformAdmin(ownTenant bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !h.enforcePermissions {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPlatformAdmin(r) {
				next.ServeHTTP(w, r)
				return
			}
			if ownTenant {
				pathID, err := id.Normalize(chi.URLParam(r, "tenantID"))
				if err == nil && pathID == GetTenantID(r.Context()) {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.WarnContext(r.Context(), "tenant administration denied",
				logger.UserID(GetSubject(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			respondServiceError(w, r, errPermissionDenied)
		})
	}
}
