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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opentrusty/tenantdir/internal/authz"
)

// CreateRole creates a custom role in the current tenant
// @Summary Create Role
// @Tags Role
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body authz.RoleInput true "Role Data"
// @Success 201 {object} authz.Role
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants/{tenantID}/roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req authz.RoleInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	role, err := h.roleService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", tenantPath(r, "/roles/"+role.ID))
	respondJSON(w, http.StatusCreated, role)
}

// ListRoles lists the roles of the current tenant
// @Summary List Roles
// @Tags Role
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {array} authz.Role
// @Router /tenants/{tenantID}/roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// GetRole returns one role of the current tenant
// @Summary Get Role
// @Tags Role
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Success 200 {object} authz.Role
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// UpdateRole changes a role's name and description
// @Summary Update Role
// @Tags Role
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Param request body authz.RoleInput true "Role Data"
// @Success 200 {object} authz.Role
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID} [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req authz.RoleInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	role, err := h.roleService.Update(r.Context(), chi.URLParam(r, "roleID"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// DeleteRole removes a custom role and its assignments
// @Summary Delete Role
// @Tags Role
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roleService.Delete(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenantPath builds a resource path below the current tenant.
func tenantPath(r *http.Request, suffix string) string {
	return "/api/v1/tenants/" + GetTenantID(r.Context()) + suffix
}
