package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/authz"
	"github.com/opentrusty/tenantdir/internal/config"
	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/identity"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// bootstrap makes sure the configured tenant exists with an administrator
// holding tenant_admin. Every step is idempotent.
func (a *app) bootstrap(ctx context.Context, b config.BootstrapConfig) error {
	if !b.Enabled() {
		slog.Info("no bootstrap tenant configured")
		return nil
	}
	ctx = audit.WithActor(ctx, "bootstrap")

	t, err := a.store.Tenants().GetByName(ctx, b.TenantName)
	if errs.Is(err, errs.KindNotFound) {
		t, err = a.tenants.Create(ctx, tenant.CreateInput{Name: b.TenantName})
	}
	if err != nil {
		return fmt.Errorf("bootstrap tenant: %w", err)
	}

	ctx = tenant.WithTenant(ctx, t.ID)
	scope, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	admin, err := a.store.Accounts().GetByUsername(ctx, scope, b.AdminUsername)
	switch {
	case errs.Is(err, errs.KindNotFound):
		admin, err = a.accounts.Create(ctx, identity.AccountInput{
			Username: b.AdminUsername,
			Email:    b.AdminEmail,
			Password: b.AdminPassword,
		})
	case err == nil:
		a.checkAdminPassword(ctx, b)
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	role, err := a.store.Roles().GetByName(ctx, scope, authz.RoleTenantAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin role: %w", err)
	}
	if _, created, err := a.userRoles.Grant(ctx, admin.ID, role.ID); err != nil {
		return fmt.Errorf("bootstrap admin grant: %w", err)
	} else if created {
		slog.InfoContext(ctx, "bootstrap administrator granted",
			logger.TenantID(t.ID),
			logger.UserID(admin.ID),
			logger.RoleID(role.ID),
		)
	}
	return nil
}

// checkAdminPassword warns when the stored administrator credential no longer
// matches the configured one. Bootstrap never rotates passwords.
func (a *app) checkAdminPassword(ctx context.Context, b config.BootstrapConfig) {
	account, ok, err := a.accounts.VerifyPassword(ctx, b.AdminUsername, b.AdminPassword)
	if err != nil {
		slog.WarnContext(ctx, "bootstrap admin password check failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		slog.WarnContext(ctx, "bootstrap admin password differs from configuration, keeping stored credential",
			logger.UserID(account.ID),
			slog.Bool("active", account.IsActive),
		)
	}
}
