package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
)

var (
	// ErrUnknownTenant means the webhook route matches no configured tenant.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrPipelineMismatch means a multi-pipeline tenant received an event
	// for a pipeline none of its entries declare. The event is dropped:
	// logged and acknowledged, never retried.
	ErrPipelineMismatch = errors.New("no tenant entry for lead pipeline")
)

// TenantResolver selects the tenant configuration for an inbound event.
//
// Single-pipeline routes resolve with a pure table lookup. Routes hosting
// several independently configured funnels on one CRM account need a remote
// lookup of the lead's current pipeline first, since those funnels must not share
// retry counters or stage IDs.
type TenantResolver struct {
	byRoute map[string][]*domain.Tenant
	leads   repo.LeadRepo
}

// NewTenantResolver builds the resolver from the immutable tenant table.
func NewTenantResolver(tenants []*domain.Tenant, leads repo.LeadRepo) *TenantResolver {
	byRoute := make(map[string][]*domain.Tenant)
	for _, t := range tenants {
		byRoute[t.Route] = append(byRoute[t.Route], t)
	}
	return &TenantResolver{byRoute: byRoute, leads: leads}
}

// Known reports whether any tenant is configured for the route.
func (r *TenantResolver) Known(route string) bool {
	return len(r.byRoute[route]) > 0
}

// Entries returns the configured entries for a route, for the health report.
func (r *TenantResolver) Entries(route string) []*domain.Tenant {
	return r.byRoute[route]
}

// Resolve returns the tenant config that applies to the lead.
func (r *TenantResolver) Resolve(ctx context.Context, route string, leadID int64) (*domain.Tenant, error) {
	entries := r.byRoute[route]
	if len(entries) == 0 {
		return nil, ErrUnknownTenant
	}
	if len(entries) == 1 {
		return entries[0], nil
	}

	// Multi-pipeline route: the first entry carries the shared base
	// credentials used for the disambiguating lookup.
	pipelineID, err := r.leads.FetchPipelineID(ctx, entries[0], leadID)
	if err != nil {
		return nil, fmt.Errorf("fetch pipeline for lead %d: %w", leadID, err)
	}
	for _, t := range entries {
		if t.PipelineID == pipelineID {
			return t, nil
		}
	}
	return nil, ErrPipelineMismatch
}
