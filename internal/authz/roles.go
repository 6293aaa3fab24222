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

package authz

// -----------------------------------------------------------------------------
// System Role Constants
// Every tenant is provisioned with these roles on creation. They are marked
// is_system_role and cannot be deleted or renamed by tenant callers.
// -----------------------------------------------------------------------------

const (
	// RoleTenantAdmin administers roles, users and assignments of its tenant.
	RoleTenantAdmin = "tenant_admin"

	// RoleTenantMember is basic tenant membership.
	RoleTenantMember = "tenant_member"
)

// -----------------------------------------------------------------------------
// Permission Catalog
// Global resource:action capabilities seeded by Bootstrap.
// -----------------------------------------------------------------------------

const (
	PermTenantView       = "tenant:view"
	PermRoleRead         = "role:read"
	PermRoleWrite        = "role:write"
	PermRoleDelete       = "role:delete"
	PermRoleAssign       = "role:assign"
	PermPermissionRead   = "permission:read"
	PermPermissionAssign = "permission:assign"
	PermUserRead         = "user:read"
	PermUserWrite        = "user:write"
	PermUserReadProfile  = "user:read_profile"
	PermUserWriteProfile = "user:write_profile"
	PermDocumentRead     = "doc:read"
	PermDocumentWrite    = "doc:write"
)

// CatalogEntry describes one seeded permission.
type CatalogEntry struct {
	Name        string
	Description string
}

// PermissionCatalog is the permission set seeded at startup.
var PermissionCatalog = []CatalogEntry{
	{PermTenantView, "View tenant details"},
	{PermRoleRead, "List and read roles"},
	{PermRoleWrite, "Create and update roles"},
	{PermRoleDelete, "Delete roles"},
	{PermRoleAssign, "Grant and revoke user roles"},
	{PermPermissionRead, "Read the permission catalog and role permissions"},
	{PermPermissionAssign, "Grant and revoke role permissions"},
	{PermUserRead, "List and read user accounts"},
	{PermUserWrite, "Create and deactivate user accounts"},
	{PermUserReadProfile, "Read own profile"},
	{PermUserWriteProfile, "Update own profile"},
	{PermDocumentRead, "Read documents"},
	{PermDocumentWrite, "Write documents"},
}

// SystemRole describes a role provisioned for every tenant.
type SystemRole struct {
	Name        string
	Description string
	Permissions []string
}

// SystemRoles lists the roles provisioned for a new tenant with their default permissions.
var SystemRoles = []SystemRole{
	{
		Name:        RoleTenantAdmin,
		Description: "Full administration of the tenant directory",
		Permissions: []string{
			PermTenantView,
			PermRoleRead,
			PermRoleWrite,
			PermRoleDelete,
			PermRoleAssign,
			PermPermissionRead,
			PermPermissionAssign,
			PermUserRead,
			PermUserWrite,
			PermUserReadProfile,
			PermUserWriteProfile,
		},
	},
	{
		Name:        RoleTenantMember,
		Description: "Basic tenant membership",
		Permissions: []string{
			PermTenantView,
			PermUserReadProfile,
			PermUserWriteProfile,
		},
	},
}
