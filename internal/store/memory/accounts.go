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

package memory

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

type accountRepository struct {
	s *Store
}

func copyAccount(a *identity.UserAccount) *identity.UserAccount {
	c := *a
	return &c
}

func (r *accountRepository) Create(ctx context.Context, scope tenant.Scope, a *identity.UserAccount) error {
	if err := scope.Check("memory.CreateAccount"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		if err := tenantExists(txn, scope, "memory.CreateAccount"); err != nil {
			return err
		}
		if err := accountUnique(txn, scope, a); err != nil {
			return err
		}
		stored := copyAccount(a)
		stored.TenantID = scope.TenantID()
		if err := txn.Insert(tableAccounts, stored); err != nil {
			return errs.Internal("memory.CreateAccount", err)
		}
		return nil
	})
}

func accountUnique(txn *memdb.Txn, scope tenant.Scope, a *identity.UserAccount) error {
	for _, q := range []struct{ index, value string }{
		{indexUsername, a.Username},
		{indexEmail, a.Email},
	} {
		raw, err := txn.First(tableAccounts, q.index, scope.TenantID(), q.value)
		if err != nil {
			return errs.Internal("memory.CreateAccount", err)
		}
		if raw != nil && raw.(*identity.UserAccount).ID != a.ID {
			return identity.ErrAccountAlreadyExists
		}
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (*identity.UserAccount, error) {
	if err := scope.Check("memory.GetAccount"); err != nil {
		return nil, err
	}
	raw, err := r.s.read(ctx).First(tableAccounts, indexID, id)
	if err != nil {
		return nil, errs.Internal("memory.GetAccount", err)
	}
	if raw == nil || !scope.Contains(raw.(*identity.UserAccount).TenantID) {
		return nil, identity.ErrAccountNotFound
	}
	return copyAccount(raw.(*identity.UserAccount)), nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, scope tenant.Scope, username string) (*identity.UserAccount, error) {
	if err := scope.Check("memory.GetAccount"); err != nil {
		return nil, err
	}
	raw, err := r.s.read(ctx).First(tableAccounts, indexUsername, scope.TenantID(), username)
	if err != nil {
		return nil, errs.Internal("memory.GetAccount", err)
	}
	if raw == nil {
		return nil, identity.ErrAccountNotFound
	}
	return copyAccount(raw.(*identity.UserAccount)), nil
}

func (r *accountRepository) List(ctx context.Context, scope tenant.Scope) ([]*identity.UserAccount, error) {
	if err := scope.Check("memory.ListAccounts"); err != nil {
		return nil, err
	}
	it, err := r.s.read(ctx).Get(tableAccounts, indexTenant, scope.TenantID())
	if err != nil {
		return nil, errs.Internal("memory.ListAccounts", err)
	}
	return collect(it, copyAccount), nil
}

func (r *accountRepository) Update(ctx context.Context, scope tenant.Scope, a *identity.UserAccount) error {
	if err := scope.Check("memory.UpdateAccount"); err != nil {
		return err
	}
	return r.s.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableAccounts, indexID, a.ID)
		if err != nil {
			return errs.Internal("memory.UpdateAccount", err)
		}
		if raw == nil || !scope.Contains(raw.(*identity.UserAccount).TenantID) {
			return identity.ErrAccountNotFound
		}
		if err := accountUnique(txn, scope, a); err != nil {
			return err
		}
		updated := copyAccount(a)
		updated.TenantID = scope.TenantID()
		updated.CreatedAt = raw.(*identity.UserAccount).CreatedAt
		if err := txn.Insert(tableAccounts, updated); err != nil {
			return errs.Internal("memory.UpdateAccount", err)
		}
		return nil
	})
}
