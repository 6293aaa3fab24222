package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opentrusty/tenantdir/internal/identity"
)

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// CreateUser creates a user account in the current tenant
// @Summary Create User
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body identity.AccountInput true "Account Data"
// @Success 201 {object} identity.UserAccount
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants/{tenantID}/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req identity.AccountInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	acct, err := h.accountService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", tenantPath(r, "/users/"+acct.ID))
	respondJSON(w, http.StatusCreated, acct)
}

// ListUsers lists the accounts of the current tenant
// @Summary List Users
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {array} identity.UserAccount
// @Router /tenants/{tenantID}/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accts, err := h.accountService.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accts)
}

// GetUser returns one account
// @Summary Get User
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Success 200 {object} identity.UserAccount
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accountService.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// SetUserActive activates or deactivates an account
// @Summary Set User Active
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param userID path string true "User ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} identity.UserAccount
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/users/{userID} [patch]
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if req.Active == nil {
		respondError(w, http.StatusBadRequest, "active is required")
		return
	}

	acct, err := h.accountService.SetActive(r.Context(), chi.URLParam(r, "userID"), *req.Active)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}
