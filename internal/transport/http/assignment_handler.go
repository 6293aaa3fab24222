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

// ListPermissions returns the global permission catalog
// @Summary List Permissions
// @Tags Permission
// @Produce json
// @Security BearerAuth
// @Success 200 {array} authz.Permission
// @Router /permissions [get]
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rolePerms.ListAllGlobal(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// ListRolePermissions lists the permissions granted to a role
// @Summary List Role Permissions
// @Tags Permission
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Success 200 {array} authz.Permission
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID}/permissions [get]
func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rolePerms.ListForRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// GrantRolePermission grants a permission to a role. Granting an existing
// pair answers 200 with the existing assignment.
// @Summary Grant Role Permission
// @Tags Permission
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Param permissionID path string true "Permission ID"
// @Success 201 {object} authz.RolePermissionAssignment
// @Success 200 {object} authz.RolePermissionAssignment
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID}/permissions/{permissionID} [post]
func (h *Handler) GrantRolePermission(w http.ResponseWriter, r *http.Request) {
	a, created, err := h.rolePerms.Grant(r.Context(), chi.URLParam(r, "roleID"), chi.URLParam(r, "permissionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, grantStatus(created), a)
}

// RevokeRolePermission removes a permission from a role
// @Summary Revoke Role Permission
// @Tags Permission
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param roleID path string true "Role ID"
// @Param permissionID path string true "Permission ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/roles/{roleID}/permissions/{permissionID} [delete]
func (h *Handler) RevokeRolePermission(w http.ResponseWriter, r *http.Request) {
	removed, err := h.rolePerms.Revoke(r.Context(), chi.URLParam(r, "roleID"), chi.URLParam(r, "permissionID"))
	respondRevoke(w, r, removed, err)
}

// ListUserRoles lists the roles held by a user
// @Summary List User Roles
// @Tags Assignment
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Success 200 {array} authz.Role
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID}/roles [get]
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.userRoles.ListRolesForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// GrantUserRole assigns a role to a user
// @Summary Grant User Role
// @Tags Assignment
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Param roleID path string true "Role ID"
// @Success 201 {object} authz.UserRoleAssignment
// @Success 200 {object} authz.UserRoleAssignment
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID}/roles/{roleID} [post]
func (h *Handler) GrantUserRole(w http.ResponseWriter, r *http.Request) {
	a, created, err := h.userRoles.Grant(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, grantStatus(created), a)
}

// RevokeUserRole removes a role from a user
// @Summary Revoke User Role
// @Tags Assignment
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Param roleID path string true "Role ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID}/roles/{roleID} [delete]
func (h *Handler) RevokeUserRole(w http.ResponseWriter, r *http.Request) {
	removed, err := h.userRoles.Revoke(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"))
	respondRevoke(w, r, removed, err)
}

// ListUserPermissions returns the effective permissions of a user
// @Summary List User Permissions
// @Tags Assignment
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Success 200 {array} authz.Permission
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID}/permissions [get]
func (h *Handler) ListUserPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.userRoles.ListPermissionsForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

func grantStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func respondRevoke(w http.ResponseWriter, r *http.Request, removed bool, err error) {
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !removed {
		respondServiceError(w, r, authz.ErrAssignmentNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
