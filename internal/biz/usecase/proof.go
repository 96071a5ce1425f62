package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
)

// Action is the outcome category of one processed event.
type Action string

const (
	// ActionIgnored means the lead was outside the proof window (or the
	// event was otherwise non-actionable) and nothing was written.
	ActionIgnored Action = "ignored"
	// ActionRetried means the submission was rejected and the retry
	// counter advanced.
	ActionRetried Action = "retried"
	// ActionEscalated means the retry budget ran out.
	ActionEscalated Action = "escalated"
	// ActionConfirmed means a valid proof was accepted.
	ActionConfirmed Action = "confirmed"
	// ActionSkipped means the lead state could not be evaluated; the event
	// was acknowledged without any write.
	ActionSkipped Action = "skipped"
)

// Outcome reports what Process did with an event.
type Outcome struct {
	Action     Action
	LeadID     int64
	StageID    int
	RetryCount int
	Reason     string
}

// Decision is the pure transition computed from current lead state and the
// proof verdict, before anything is written.
type Decision struct {
	NoOp       bool
	StageID    int
	RetryCount int
	Confirmed  bool
	Escalated  bool
}

// Decide computes the next pipeline stage and retry counter.
//
// Leads outside the waiting/rejected window are never touched: the CRM may
// deliver messages after a manual override, and those must not re-enter the
// flow. Escalation keeps the triggering counter value for audit instead of
// resetting it.
func Decide(tenant *domain.Tenant, lead *domain.LeadState, validProof bool) Decision {
	if !tenant.Stages.Eligible(lead.StageID) {
		return Decision{NoOp: true}
	}

	if validProof {
		return Decision{
			StageID:    tenant.Stages.ProofReceived,
			RetryCount: 0,
			Confirmed:  true,
		}
	}

	next := lead.RetryCount + 1
	if next >= tenant.MaxRetries {
		return Decision{
			StageID:    tenant.Stages.EscalationStage(),
			RetryCount: next,
			Escalated:  true,
		}
	}
	return Decision{
		StageID:    tenant.Stages.RejectedStage(),
		RetryCount: next,
	}
}

// ProofUsecase drives a lead through the payment-proof confirmation flow:
// fetch state, classify the attachment when one is present, apply the
// transition, and kick off the post-confirmation side flows.
type ProofUsecase struct {
	leads       repo.LeadRepo
	classifier  repo.ClassifierRepo
	attribution repo.AttributionRepo
	provision   *ProvisionUsecase
}

// NewProofUsecase creates the proof confirmation usecase. attribution and
// provision may be nil when the tenant table configures neither.
func NewProofUsecase(leads repo.LeadRepo, classifier repo.ClassifierRepo, attribution repo.AttributionRepo, provision *ProvisionUsecase) *ProofUsecase {
	return &ProofUsecase{
		leads:       leads,
		classifier:  classifier,
		attribution: attribution,
		provision:   provision,
	}
}

// Process handles one canonical inbound event for a resolved tenant.
//
// An error means the event could not be evaluated (state store unavailable);
// the caller must still acknowledge the webhook. On success exactly one state
// write has happened, plus optional audit note and side flows on confirmation.
func (uc *ProofUsecase) Process(ctx context.Context, tenant *domain.Tenant, ev *domain.Event) (Outcome, error) {
	lead, err := uc.leads.FetchLead(ctx, tenant, ev.LeadID)
	if err != nil {
		return Outcome{Action: ActionSkipped, LeadID: ev.LeadID}, fmt.Errorf("fetch lead %d: %w", ev.LeadID, err)
	}
	if lead == nil {
		return Outcome{Action: ActionIgnored, LeadID: ev.LeadID, Reason: "lead not found"}, nil
	}

	if !tenant.Stages.Eligible(lead.StageID) {
		return Outcome{Action: ActionIgnored, LeadID: ev.LeadID, StageID: lead.StageID, RetryCount: lead.RetryCount, Reason: "lead outside proof window"}, nil
	}

	att := ev.Attachment
	if att == nil && ev.NeedsLookup {
		att, err = uc.leads.FetchLastAttachment(ctx, tenant, ev.LeadID)
		if err != nil {
			return Outcome{Action: ActionSkipped, LeadID: ev.LeadID}, fmt.Errorf("fetch last attachment for lead %d: %w", ev.LeadID, err)
		}
	}

	// Classification runs at most once per event, and only for attachments
	// of a usable kind; everything else counts as a missing proof.
	validProof := false
	reason := "no attachment"
	if att.Evaluable() {
		c := uc.classifier.Classify(ctx, att)
		validProof = c.IsProof
		reason = c.Reason
		log.Printf("[Proof] tenant=%s lead=%d classified isProof=%v confidence=%s reason=%q",
			tenant.Name, ev.LeadID, c.IsProof, c.Confidence, c.Reason)
	}

	decision := Decide(tenant, lead, validProof)
	if decision.NoOp {
		return Outcome{Action: ActionIgnored, LeadID: ev.LeadID, StageID: lead.StageID, RetryCount: lead.RetryCount}, nil
	}

	update := domain.LeadUpdate{
		StageID:    &decision.StageID,
		RetryCount: &decision.RetryCount,
	}
	if ref := domain.ExtractTrackingRef(ev.Text); ref != "" && lead.TrackingID == "" {
		update.TrackingID = &ref
		lead.TrackingID = ref
	}
	if err := uc.leads.UpdateLead(ctx, tenant, ev.LeadID, update); err != nil {
		return Outcome{Action: ActionSkipped, LeadID: ev.LeadID}, fmt.Errorf("update lead %d: %w", ev.LeadID, err)
	}

	out := Outcome{LeadID: ev.LeadID, StageID: decision.StageID, RetryCount: decision.RetryCount, Reason: reason}
	switch {
	case decision.Confirmed:
		out.Action = ActionConfirmed
		uc.afterConfirmation(ctx, tenant, lead, att)
	case decision.Escalated:
		out.Action = ActionEscalated
	default:
		out.Action = ActionRetried
	}
	return out, nil
}

// afterConfirmation runs the post-acceptance side flows. All of them are
// best-effort: the proof is already accepted and the state write has landed.
func (uc *ProofUsecase) afterConfirmation(ctx context.Context, tenant *domain.Tenant, lead *domain.LeadState, att *domain.Attachment) {
	note := fmt.Sprintf("Payment proof accepted: %s (%s)", att.Name, att.URL)
	if att.Name == "" {
		note = fmt.Sprintf("Payment proof accepted: %s", att.URL)
	}
	if err := uc.leads.AppendNote(ctx, tenant, lead.ID, note); err != nil {
		log.Printf("[Proof] tenant=%s lead=%d note append failed: %v", tenant.Name, lead.ID, err)
	}

	if uc.attribution != nil && tenant.Attribution != nil && lead.TrackingID != "" {
		if err := uc.attribution.Report(ctx, tenant, lead.TrackingID, lead.Amount); err != nil {
			log.Printf("[Proof] tenant=%s lead=%d attribution report failed: %v", tenant.Name, lead.ID, err)
		}
	}

	if uc.provision != nil && tenant.Backend != nil {
		uc.provision.Deliver(ctx, tenant, lead)
	}
}
