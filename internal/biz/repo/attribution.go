package repo

import (
	"context"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

// AttributionRepo reports a conversion event to the tenant's ad-attribution
// API. Fire-and-forget: errors are for logging only and must never affect
// lead state or the webhook response.
type AttributionRepo interface {
	Report(ctx context.Context, tenant *domain.Tenant, trackingID string, amount float64) error
}
