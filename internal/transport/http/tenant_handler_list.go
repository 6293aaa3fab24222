package http

import (
	"net/http"
	"strconv"

	"github.com/opentrusty/tenantdir/internal/errs"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListTenants returns a page of tenants
// @Summary List Tenants
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.Tenant
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	tenants, err := h.tenantService.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tenants)
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, errs.Validation("http.page", "limit must be a positive integer")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errs.Validation("http.page", "offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
