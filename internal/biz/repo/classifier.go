package repo

import (
	"context"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

// ClassifierRepo wraps the external vision classification call.
//
// The gateway absorbs its own failures, so there is no error return: with no
// credential configured it fails open (IsProof=true), on unreadable PDF
// content it fails closed (IsProof=false), and on provider outage after the
// retry budget it fails open. The asymmetry is deliberate.
type ClassifierRepo interface {
	Classify(ctx context.Context, attachment *domain.Attachment) domain.Classification
}
