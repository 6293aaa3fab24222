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

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/opentrusty/tenantdir/internal/authz"
)

// Request and response messages of the directory service, carried as JSON.
type (
	Empty struct{}

	RoleRequest struct {
		RoleID string `json:"role_id"`
	}

	UpdateRoleRequest struct {
		RoleID string `json:"role_id"`
		authz.RoleInput
	}

	RoleResponse struct {
		Role *authz.Role `json:"role"`
	}

	RolesResponse struct {
		Roles []*authz.Role `json:"roles"`
	}

	PermissionsResponse struct {
		Permissions []*authz.Permission `json:"permissions"`
	}

	RolePermissionRequest struct {
		RoleID       string `json:"role_id"`
		PermissionID string `json:"permission_id"`
	}

	RolePermissionGrant struct {
		Assignment *authz.RolePermissionAssignment `json:"assignment"`
		Created    bool                            `json:"created"`
	}

	UserRequest struct {
		UserID string `json:"user_id"`
	}

	UserRoleRequest struct {
		UserID string `json:"user_id"`
		RoleID string `json:"role_id"`
	}

	UserRoleGrant struct {
		Assignment *authz.UserRoleAssignment `json:"assignment"`
		Created    bool                      `json:"created"`
	}
)

// DirectoryServer serves role and assignment operations of the resolved
// tenant. Only ListPermissions runs without one.
type DirectoryServer struct {
	roles     *authz.RoleService
	rolePerms *authz.RolePermissionService
	userRoles *authz.UserRoleService
}

// NewDirectoryServer creates the directory service.
func NewDirectoryServer(roles *authz.RoleService, rolePerms *authz.RolePermissionService, userRoles *authz.UserRoleService) *DirectoryServer {
	return &DirectoryServer{roles: roles, rolePerms: rolePerms, userRoles: userRoles}
}

func (d *DirectoryServer) CreateRole(ctx context.Context, in *authz.RoleInput) (*RoleResponse, error) {
	r, err := d.roles.Create(ctx, *in)
	if err != nil {
		return nil, err
	}
	return &RoleResponse{Role: r}, nil
}

func (d *DirectoryServer) GetRole(ctx context.Context, in *RoleRequest) (*RoleResponse, error) {
	r, err := d.roles.Get(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}
	return &RoleResponse{Role: r}, nil
}

func (d *DirectoryServer) ListRoles(ctx context.Context, _ *Empty) (*RolesResponse, error) {
	roles, err := d.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	return &RolesResponse{Roles: roles}, nil
}

func (d *DirectoryServer) UpdateRole(ctx context.Context, in *UpdateRoleRequest) (*RoleResponse, error) {
	r, err := d.roles.Update(ctx, in.RoleID, in.RoleInput)
	if err != nil {
		return nil, err
	}
	return &RoleResponse{Role: r}, nil
}

func (d *DirectoryServer) DeleteRole(ctx context.Context, in *RoleRequest) (*Empty, error) {
	if err := d.roles.Delete(ctx, in.RoleID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// ListPermissions returns the global catalog.
func (d *DirectoryServer) ListPermissions(ctx context.Context, _ *Empty) (*PermissionsResponse, error) {
	perms, err := d.rolePerms.ListAllGlobal(ctx)
	if err != nil {
		return nil, err
	}
	return &PermissionsResponse{Permissions: perms}, nil
}

func (d *DirectoryServer) ListRolePermissions(ctx context.Context, in *RoleRequest) (*PermissionsResponse, error) {
	perms, err := d.rolePerms.ListForRole(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}
	return &PermissionsResponse{Permissions: perms}, nil
}

func (d *DirectoryServer) GrantRolePermission(ctx context.Context, in *RolePermissionRequest) (*RolePermissionGrant, error) {
	a, created, err := d.rolePerms.Grant(ctx, in.RoleID, in.PermissionID)
	if err != nil {
		return nil, err
	}
	return &RolePermissionGrant{Assignment: a, Created: created}, nil
}

// RevokeRolePermission fails NOT_FOUND when the pair was not assigned.
func (d *DirectoryServer) RevokeRolePermission(ctx context.Context, in *RolePermissionRequest) (*Empty, error) {
	removed, err := d.rolePerms.Revoke(ctx, in.RoleID, in.PermissionID)
	return revoked(removed, err)
}

func (d *DirectoryServer) ListUserRoles(ctx context.Context, in *UserRequest) (*RolesResponse, error) {
	roles, err := d.userRoles.ListRolesForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	return &RolesResponse{Roles: roles}, nil
}

func (d *DirectoryServer) GrantUserRole(ctx context.Context, in *UserRoleRequest) (*UserRoleGrant, error) {
	a, created, err := d.userRoles.Grant(ctx, in.UserID, in.RoleID)
	if err != nil {
		return nil, err
	}
	return &UserRoleGrant{Assignment: a, Created: created}, nil
}

// RevokeUserRole fails NOT_FOUND when the pair was not assigned.
func (d *DirectoryServer) RevokeUserRole(ctx context.Context, in *UserRoleRequest) (*Empty, error) {
	removed, err := d.userRoles.Revoke(ctx, in.UserID, in.RoleID)
	return revoked(removed, err)
}

func (d *DirectoryServer) ListUserPermissions(ctx context.Context, in *UserRequest) (*PermissionsResponse, error) {
	perms, err := d.userRoles.ListPermissionsForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]*authz.Permission, len(perms))
	for i := range perms {
		out[i] = &perms[i]
	}
	return &PermissionsResponse{Permissions: out}, nil
}

func revoked(removed bool, err error) (*Empty, error) {
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, authz.ErrAssignmentNotFound
	}
	return &Empty{}, nil
}

// directoryService is the handler type checked by RegisterService.
type directoryService interface {
	ListRoles(context.Context, *Empty) (*RolesResponse, error)
}

// FullMethod returns the full gRPC method name of a directory method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed directory method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(*DirectoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, "malformed request")
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(*DirectoryServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}, handler)
		},
	}
}

var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*directoryService)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateRole", (*DirectoryServer).CreateRole),
		unary("GetRole", (*DirectoryServer).GetRole),
		unary("ListRoles", (*DirectoryServer).ListRoles),
		unary("UpdateRole", (*DirectoryServer).UpdateRole),
		unary("DeleteRole", (*DirectoryServer).DeleteRole),
		unary("ListPermissions", (*DirectoryServer).ListPermissions),
		unary("ListRolePermissions", (*DirectoryServer).ListRolePermissions),
		unary("GrantRolePermission", (*DirectoryServer).GrantRolePermission),
		unary("RevokeRolePermission", (*DirectoryServer).RevokeRolePermission),
		unary("ListUserRoles", (*DirectoryServer).ListUserRoles),
		unary("GrantUserRole", (*DirectoryServer).GrantUserRole),
		unary("RevokeUserRole", (*DirectoryServer).RevokeUserRole),
		unary("ListUserPermissions", (*DirectoryServer).ListUserPermissions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tenantdir/v1/directory",
}
