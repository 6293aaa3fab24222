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


package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Directory records tenant resolution and authorization graph activity. It
// satisfies tenant.ResolutionObserver and authz.Observer.
type Directory struct {
	resolutions  metric.Int64Counter
	grants       metric.Int64Counter
	revokes      metric.Int64Counter
	cacheLookups metric.Int64Counter
}

// NewDirectory creates the directory instruments on m.
func NewDirectory(m *Meter) (*Directory, error) {
	resolutions, err := m.CreateCounter("tenantdir.tenant.resolutions", "Tenant context resolutions by source")
	if err != nil {
		return nil, err
	}
	grants, err := m.CreateCounter("tenantdir.authz.grants", "Grant calls by edge and outcome")
	if err != nil {
		return nil, err
	}
	revokes, err := m.CreateCounter("tenantdir.authz.revokes", "Revoke calls by edge and outcome")
	if err != nil {
		return nil, err
	}
	cacheLookups, err := m.CreateCounter("tenantdir.authz.cache_lookups", "Effective permission cache lookups")
	if err != nil {
		return nil, err
	}
	return &Directory{
		resolutions:  resolutions,
		grants:       grants,
		revokes:      revokes,
		cacheLookups: cacheLookups,
	}, nil
}

func (d *Directory) RecordResolution(ctx context.Context, source string) {
	d.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (d *Directory) RecordGrant(ctx context.Context, edge string, created bool) {
	d.grants.Add(ctx, 1, metric.WithAttributes(
		attribute.String("edge", edge),
		attribute.Bool("created", created),
	))
}

func (d *Directory) RecordRevoke(ctx context.Context, edge string, removed bool) {
	d.revokes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("edge", edge),
		attribute.Bool("removed", removed),
	))
}

func (d *Directory) RecordCacheLookup(ctx context.Context, hit bool) {
	d.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
