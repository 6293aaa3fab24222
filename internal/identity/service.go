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
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/store"
	"github.com/opentrusty/tenantdir/internal/tenant"
	"github.com/opentrusty/tenantdir/internal/validation"
)

// AccountInput is the payload for creating an account.
type AccountInput struct {
	Username  string `json:"username" validate:"notblank,min=3,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"min=8,max=128"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// Service provides user account management within the current tenant
type Service struct {
	repo        AccountRepository
	tx          store.TxManager
	hasher      *PasswordHasher
	guard       tenant.Guard
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(repo AccountRepository, tx store.TxManager, hasher *PasswordHasher, guard tenant.Guard, auditLogger audit.Logger) *Service {
	if guard == nil {
		guard = tenant.AlwaysWritable
	}
	return &Service{
		repo:        repo,
		tx:          tx,
		hasher:      hasher,
		guard:       guard,
		auditLogger: auditLogger,
	}
}

// Create registers an active account in the current tenant.
func (s *Service) Create(ctx context.Context, in AccountInput) (*UserAccount, error) {
	const op = "identity.Create"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, errs.Internal(op, err)
	}

	now := time.Now().UTC()
	account := &UserAccount{
		ID:           id.NewUUIDv7(),
		TenantID:     scope.TenantID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		return s.repo.Create(ctx, scope, account)
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	slog.InfoContext(ctx, "user account created",
		slog.String("tenant_id", scope.TenantID()),
		slog.String("user_id", account.ID),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: scope.TenantID(),
		Resource: account.ID,
		Metadata: map[string]any{"username": account.Username},
	})
	return account, nil
}

// Get retrieves an account of the current tenant.
func (s *Service) Get(ctx context.Context, accountID string) (*UserAccount, error) {
	const op = "identity.Get"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	accountID, ok := canonical(accountID)
	if !ok {
		return nil, errs.Wrap(op, ErrAccountNotFound)
	}
	a, err := s.repo.GetByID(ctx, scope, accountID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return a, nil
}

// List returns every account of the current tenant.
func (s *Service) List(ctx context.Context) ([]*UserAccount, error) {
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap("identity.List", err)
	}
	accounts, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, errs.Wrap("identity.List", err)
	}
	return accounts, nil
}

// SetActive enables or disables an account. Inactive accounts keep their
// role assignments but hold no effective permissions.
func (s *Service) SetActive(ctx context.Context, accountID string, active bool) (*UserAccount, error) {
	const op = "identity.SetActive"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	accountID, ok := canonical(accountID)
	if !ok {
		return nil, errs.Wrap(op, ErrAccountNotFound)
	}

	var account *UserAccount
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.guard.Writable(ctx, scope); err != nil {
			return err
		}
		a, err := s.repo.GetByID(ctx, scope, accountID)
		if err != nil {
			return err
		}
		if a.IsActive == active {
			account = a
			return nil
		}
		a.IsActive = active
		a.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, scope, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	eventType := audit.TypeUserDeactivated
	if active {
		eventType = audit.TypeUserActivated
	}
	s.auditLogger.Log(ctx, audit.Event{Type: eventType, TenantID: scope.TenantID(), Resource: account.ID})
	return account, nil
}

// VerifyPassword checks password against the account's stored hash. Inactive
// accounts never verify.
func (s *Service) VerifyPassword(ctx context.Context, username, password string) (*UserAccount, bool, error) {
	const op = "identity.VerifyPassword"
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}
	a, err := s.repo.GetByUsername(ctx, scope, strings.TrimSpace(username))
	if err != nil {
		return nil, false, errs.Wrap(op, err)
	}
	if !a.IsActive {
		return a, false, nil
	}
	ok, err := s.hasher.Verify(password, a.PasswordHash)
	if err != nil {
		return nil, false, errs.Internal(op, err)
	}
	return a, ok, nil
}

func canonical(s string) (string, bool) {
	norm, err := id.Normalize(s)
	return norm, err == nil
}
