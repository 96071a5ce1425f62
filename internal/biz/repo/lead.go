package repo

import (
	"context"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

// LeadRepo is the lead state store interface, backed by the CRM's REST API.
//
// Failure semantics: an error from any method means "cannot evaluate this
// event", and callers must acknowledge the webhook without mutating anything.
// FetchLead returns (nil, nil) when the lead does not exist.
type LeadRepo interface {
	// FetchLead reads the lead fields this system cares about: current
	// stage, retry counter, tracking ID and amount.
	FetchLead(ctx context.Context, tenant *domain.Tenant, leadID int64) (*domain.LeadState, error)

	// UpdateLead applies a partial write. Transient network failures are
	// retried a bounded number of times; application-level rejections
	// (non-2xx) are not.
	UpdateLead(ctx context.Context, tenant *domain.Tenant, leadID int64, update domain.LeadUpdate) error

	// AppendNote attaches a free-text audit note to the lead.
	AppendNote(ctx context.Context, tenant *domain.Tenant, leadID int64, text string) error

	// FetchLastAttachment finds the lead's most recent attachment by
	// querying the events feed first and the notes feed second, taking the
	// first entry with a usable URL. Returns (nil, nil) when the lead has
	// no attachment on record.
	FetchLastAttachment(ctx context.Context, tenant *domain.Tenant, leadID int64) (*domain.Attachment, error)

	// FetchPipelineID returns the pipeline the lead currently sits in.
	// Used by the tenant resolver to disambiguate multi-pipeline accounts.
	FetchPipelineID(ctx context.Context, tenant *domain.Tenant, leadID int64) (int, error)
}
