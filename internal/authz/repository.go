package authz

import (
	"context"

	"github.com/opentrusty/tenantdir/internal/store"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// RoleRepository defines the interface for role persistence. Every method is
// restricted to the tenant of scope; a role of another tenant is reported as
// ErrRoleNotFound.
type RoleRepository interface {
	// Create creates a new role; a duplicate name yields ErrRoleAlreadyExists
	Create(ctx context.Context, scope tenant.Scope, role *Role) error

	// GetByID retrieves a role by ID
	GetByID(ctx context.Context, scope tenant.Scope, id string) (*Role, error)

	// GetByName retrieves a role by name
	GetByName(ctx context.Context, scope tenant.Scope, name string) (*Role, error)

	// List retrieves all roles of the tenant
	List(ctx context.Context, scope tenant.Scope) ([]*Role, error)

	// ListByIDs retrieves the roles among ids that belong to the tenant
	ListByIDs(ctx context.Context, scope tenant.Scope, ids []string) ([]*Role, error)

	// Update updates role name and description
	Update(ctx context.Context, scope tenant.Scope, role *Role) error

	// Delete deletes a role
	Delete(ctx context.Context, scope tenant.Scope, id string) error

	// Count returns the number of roles of the tenant
	Count(ctx context.Context, scope tenant.Scope) (int, error)
}

// PermissionRepository defines the interface for the global permission
// catalog. Permissions are not tenant-scoped.
type PermissionRepository interface {
	// Upsert inserts the permission or refreshes the description of the
	// existing one with the same name; p.ID is set to the stored id.
	Upsert(ctx context.Context, p *Permission) error

	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
}

// RolePermissionRepository persists role↔permission assignments. Deletes
// always carry the tenant predicate of scope.
type RolePermissionRepository interface {
	// Create stores a new assignment; an existing pair yields ErrAssignmentAlreadyExists
	Create(ctx context.Context, scope tenant.Scope, a *RolePermissionAssignment) error
	Get(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (*RolePermissionAssignment, error)
	// Delete reports whether a row was removed
	Delete(ctx context.Context, scope tenant.Scope, roleID, permissionID string) (bool, error)
	// DeleteByRole removes every assignment of roleID and returns the count
	DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error)
	ListByRole(ctx context.Context, scope tenant.Scope, roleID string) ([]*RolePermissionAssignment, error)
	// ListByRoles returns the assignments of any of roleIDs
	ListByRoles(ctx context.Context, scope tenant.Scope, roleIDs []string) ([]*RolePermissionAssignment, error)
}

// UserRoleRepository persists user↔role assignments. Deletes always carry the
// tenant predicate of scope.
type UserRoleRepository interface {
	Create(ctx context.Context, scope tenant.Scope, a *UserRoleAssignment) error
	Get(ctx context.Context, scope tenant.Scope, userID, roleID string) (*UserRoleAssignment, error)
	Delete(ctx context.Context, scope tenant.Scope, userID, roleID string) (bool, error)
	DeleteByRole(ctx context.Context, scope tenant.Scope, roleID string) (int, error)
	ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]*UserRoleAssignment, error)
}

// Store bundles the authorization repositories with the transaction manager
// they share.
type Store interface {
	store.TxManager
	Roles() RoleRepository
	Permissions() PermissionRepository
	RolePermissions() RolePermissionRepository
	UserRoles() UserRoleRepository
}
