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

import (
	"context"
	"log/slog"
	"time"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/id"
	"github.com/opentrusty/tenantdir/internal/validation"
)

// Bootstrap seeds the global permission catalog. It is idempotent: existing
// permissions keep their ids and only refresh their description.
func Bootstrap(ctx context.Context, st Store, catalog []CatalogEntry) error {
	err := st.WithinTx(ctx, func(ctx context.Context) error {
		for _, entry := range catalog {
			if !validation.PermissionName(entry.Name) {
				return errs.Validation("authz.Bootstrap", "malformed permission name "+entry.Name)
			}
			now := time.Now().UTC()
			p := &Permission{
				ID:          id.NewUUIDv7(),
				Name:        entry.Name,
				Description: entry.Description,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := st.Permissions().Upsert(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap("authz.Bootstrap", err)
	}
	slog.InfoContext(ctx, "permission catalog seeded", slog.Int("permissions", len(catalog)))
	return nil
}
