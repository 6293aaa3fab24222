package postgres

import (
	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Store exposes every repository over one DB. It satisfies authz.Store and
// store.TxManager.
type Store struct {
	*DB
}

// NewStore wraps db.
func NewStore(db *DB) *Store {
	return &Store{DB: db}
}

func (s *Store) Tenants() tenant.Repository { return NewTenantRepository(s.DB) }

func (s *Store) Accounts() identity.AccountRepository { return NewAccountRepository(s.DB) }

func (s *Store) Roles() authz.RoleRepository { return NewRoleRepository(s.DB) }

func (s *Store) Permissions() authz.PermissionRepository { return NewPermissionRepository(s.DB) }

func (s *Store) RolePermissions() authz.RolePermissionRepository {
	return NewRolePermissionRepository(s.DB)
}

func (s *Store) UserRoles() authz.UserRoleRepository { return NewUserRoleRepository(s.DB) }

var _ authz.Store = (*Store)(nil)
