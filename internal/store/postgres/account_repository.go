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


package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// AccountRepository implements identity.AccountRepository
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, tenant_id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (*identity.UserAccount, error) {
	var a identity.UserAccount
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Username, &a.Email, &a.PasswordHash,
		&a.FirstName, &a.LastName, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create creates a new user account in the tenant of scope
func (r *AccountRepository) Create(ctx context.Context, scope tenant.Scope, a *identity.UserAccount) error {
	if err := scope.Check("postgres.CreateAccount"); err != nil {
		return err
	}
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO user_accounts (
			id, tenant_id, username, email, password_hash,
			first_name, last_name, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		a.ID, scope.TenantID(), a.Username, a.Email, a.PasswordHash,
		a.FirstName, a.LastName, a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return identity.ErrAccountAlreadyExists
	}
	if missingTenant(err) {
		return tenant.ErrTenantNotFound
	}
	if err != nil {
		return errs.Internal("postgres.CreateAccount", err)
	}
	a.TenantID = scope.TenantID()
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (*identity.UserAccount, error) {
	return r.get(ctx, scope, "postgres.GetAccount", `
		SELECT `+accountColumns+` FROM user_accounts WHERE tenant_id = $1 AND id = $2
	`, id)
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, scope tenant.Scope, username string) (*identity.UserAccount, error) {
	return r.get(ctx, scope, "postgres.GetAccountByUsername", `
		SELECT `+accountColumns+` FROM user_accounts WHERE tenant_id = $1 AND username = $2
	`, username)
}

func (r *AccountRepository) get(ctx context.Context, scope tenant.Scope, op, query, arg string) (*identity.UserAccount, error) {
	if err := scope.Check(op); err != nil {
		return nil, err
	}
	a, err := scanAccount(r.db.q(ctx).QueryRow(ctx, query, scope.TenantID(), arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrAccountNotFound
	}
	if err != nil {
		return nil, errs.Internal(op, err)
	}
	return a, nil
}

// List retrieves all accounts of the tenant
func (r *AccountRepository) List(ctx context.Context, scope tenant.Scope) ([]*identity.UserAccount, error) {
	if err := scope.Check("postgres.ListAccounts"); err != nil {
		return nil, err
	}
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+accountColumns+` FROM user_accounts
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, scope.TenantID())
	if err != nil {
		return nil, errs.Internal("postgres.ListAccounts", err)
	}
	defer rows.Close()

	accounts := []*identity.UserAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Internal("postgres.ListAccounts", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("postgres.ListAccounts", err)
	}
	return accounts, nil
}

// Update persists mutable account fields
func (r *AccountRepository) Update(ctx context.Context, scope tenant.Scope, a *identity.UserAccount) error {
	if err := scope.Check("postgres.UpdateAccount"); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE user_accounts
		SET username = $3, email = $4, password_hash = $5, first_name = $6,
		    last_name = $7, is_active = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`,
		scope.TenantID(), a.ID, a.Username, a.Email, a.PasswordHash,
		a.FirstName, a.LastName, a.IsActive, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return identity.ErrAccountAlreadyExists
	}
	if err != nil {
		return errs.Internal("postgres.UpdateAccount", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}
