package authz

import (
	"time"

	"github.com/opentrusty/tenantdir/internal/errs"
)

// Domain errors
var (
	ErrRoleNotFound            = errs.New(errs.KindNotFound, "role not found")
	ErrRoleAlreadyExists       = errs.New(errs.KindConflict, "role name already exists in tenant")
	ErrSystemRoleProtected     = errs.New(errs.KindRefused, "system roles cannot be deleted")
	ErrPermissionNotFound      = errs.New(errs.KindNotFound, "permission not found")
	ErrAssignmentNotFound      = errs.New(errs.KindNotFound, "assignment not found")
	ErrAssignmentAlreadyExists = errs.New(errs.KindConflict, "assignment already exists")
	ErrTenantMismatch          = errs.New(errs.KindValidation, "tenant id does not match the current tenant")
	ErrRoleInUse               = errs.New(errs.KindConflict, "role still has assignments")
)

// Role is a named bundle of permissions owned by one tenant.
type Role struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsSystemRole bool      `json:"is_system_role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Permission is a global resource:action capability shared by all tenants.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePermissionAssignment attaches a permission to a role. TenantID is
// always the role's tenant.
type RolePermissionAssignment struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	AssignedAt   time.Time `json:"assigned_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRoleAssignment grants a role to a user account of the same tenant.
type UserRoleAssignment struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	UserAccountID string    `json:"user_account_id"`
	RoleID        string    `json:"role_id"`
	AssignedAt    time.Time `json:"assigned_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RoleInput carries the client-mutable fields of a role. TenantID is optional;
// when set it must name the current tenant.
type RoleInput struct {
	TenantID    string `json:"tenant_id,omitempty" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=255"`
}
