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

package identity

import (
	"context"
	"time"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Domain errors
var (
	ErrAccountNotFound      = errs.New(errs.KindNotFound, "user account not found")
	ErrAccountAlreadyExists = errs.New(errs.KindConflict, "username or email already in use")
)

// UserAccount is a principal owned by exactly one tenant.
type UserAccount struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountRepository defines the interface for user account persistence.
// Every method is restricted to the tenant of scope.
type AccountRepository interface {
	// Create stores a new account. Duplicate username or email within the
	// tenant yields ErrAccountAlreadyExists.
	Create(ctx context.Context, scope tenant.Scope, account *UserAccount) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, scope tenant.Scope, id string) (*UserAccount, error)

	// GetByUsername retrieves an account by username
	GetByUsername(ctx context.Context, scope tenant.Scope, username string) (*UserAccount, error)

	// List retrieves all accounts of the tenant
	List(ctx context.Context, scope tenant.Scope) ([]*UserAccount, error)

	// Update persists mutable account fields
	Update(ctx context.Context, scope tenant.Scope, account *UserAccount) error
}
