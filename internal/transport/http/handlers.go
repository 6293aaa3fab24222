// @title tenantdir API
// @version 1.0.0
// @description Multi-tenant directory: tenants, users, roles, permissions and assignments

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenantService      *tenant.Service
	accountService     *identity.Service
	roleService        *authz.RoleService
	rolePerms          *authz.RolePermissionService
	userRoles          *authz.UserRoleService
	enforcePermissions bool
}

// NewHandler creates a new HTTP handler. With enforcePermissions set, every
// tenant-scoped route checks the caller's permissions in the tenant.
func NewHandler(
	tenantService *tenant.Service,
	accountService *identity.Service,
	roleService *authz.RoleService,
	rolePerms *authz.RolePermissionService,
	userRoles *authz.UserRoleService,
	enforcePermissions bool,
) *Handler {
	return &Handler{
		tenantService:      tenantService,
		accountService:     accountService,
		roleService:        roleService,
		rolePerms:          rolePerms,
		userRoles:          userRoles,
		enforcePermissions: enforcePermissions,
	}
}

// RouterConfig carries the request pipeline collaborators.
type RouterConfig struct {
	Authenticator     *Authenticator
	Resolver          *tenant.Resolver
	RateLimiter       *RateLimiter
	AllowTenantHeader bool
	Production        bool
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(cfg.Production))
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		r.Use(TenantResolver(cfg.Resolver, cfg.AllowTenantHeader))
		r.Use(RateLimitMiddleware(cfg.RateLimiter))

		// Global permission catalog
		r.Get("/permissions", h.ListPermissions)

		// Tenant administration is not tenant-scoped
		r.Route("/tenants", func(r chi.Router) {
			r.With(h.requirePlatformAdmin(false)).Post("/", h.CreateTenant)
			r.With(h.requirePlatformAdmin(false)).Get("/", h.ListTenants)

			r.Route("/{tenantID}", func(r chi.Router) {
				r.With(h.requirePlatformAdmin(true)).Get("/", h.GetTenant)
				r.With(h.requirePlatformAdmin(false)).Patch("/", h.UpdateTenant)
				r.With(h.requirePlatformAdmin(false)).Delete("/", h.DeleteTenant)

				// Tenant-Scoped Endpoints (FAIL-CLOSED)
				r.Group(func(r chi.Router) {
					r.Use(RequireTenant)
					r.Use(MatchPathTenant)

					r.Route("/roles", func(r chi.Router) {
						r.With(h.requirePermission(authz.PermRoleWrite)).Post("/", h.CreateRole)
						r.With(h.requirePermission(authz.PermRoleRead)).Get("/", h.ListRoles)

						r.Route("/{roleID}", func(r chi.Router) {
							r.With(h.requirePermission(authz.PermRoleRead)).Get("/", h.GetRole)
							r.With(h.requirePermission(authz.PermRoleWrite)).Put("/", h.UpdateRole)
							r.With(h.requirePermission(authz.PermRoleDelete)).Delete("/", h.DeleteRole)

							r.Route("/permissions", func(r chi.Router) {
								r.With(h.requirePermission(authz.PermPermissionRead)).Get("/", h.ListRolePermissions)
								r.With(h.requirePermission(authz.PermPermissionRead)).Get("/available", h.ListPermissions)
								r.With(h.requirePermission(authz.PermPermissionAssign)).Post("/{permissionID}", h.GrantRolePermission)
								r.With(h.requirePermission(authz.PermPermissionAssign)).Delete("/{permissionID}", h.RevokeRolePermission)
							})
						})
					})

					r.Route("/users", func(r chi.Router) {
						r.With(h.requirePermission(authz.PermUserWrite)).Post("/", h.CreateUser)
						r.With(h.requirePermission(authz.PermUserRead)).Get("/", h.ListUsers)

						r.Route("/{userID}", func(r chi.Router) {
							r.With(h.requirePermission(authz.PermUserRead)).Get("/", h.GetUser)
							r.With(h.requirePermission(authz.PermUserWrite)).Patch("/", h.SetUserActive)
							r.With(h.requirePermission(authz.PermPermissionRead)).Get("/permissions", h.ListUserPermissions)

							r.Route("/roles", func(r chi.Router) {
								r.With(h.requirePermission(authz.PermRoleRead)).Get("/", h.ListUserRoles)
								r.With(h.requirePermission(authz.PermRoleAssign)).Post("/{roleID}", h.GrantUserRole)
								r.With(h.requirePermission(authz.PermRoleAssign)).Delete("/{roleID}", h.RevokeUserRole)
							})
						})
					})
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tenantdir",
	})
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validation("http.decode", "request body is required")
		}
		return errs.Validation("http.decode", "invalid request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindRefused:
		return http.StatusForbidden
	case errs.KindContextMissing:
		return http.StatusUnauthorized
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError translates a service error. Internal details are logged,
// never returned.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Error(err),
			logger.TenantID(GetTenantID(r.Context())),
			logger.Path(r.URL.Path),
		)
	}
	respondJSON(w, status, map[string]string{
		"error": errs.Message(err),
		"kind":  string(kind),
	})
}
