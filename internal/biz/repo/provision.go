package repo

import (
	"context"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

// ProvisionRepo provisions a player account on the tenant's gaming backend
// after a confirmed deposit.
type ProvisionRepo interface {
	Provision(ctx context.Context, tenant *domain.Tenant, leadID int64, amount float64) (*domain.PlayerCredentials, error)
}
