package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
)

// ProvisionUsecase provisions gaming-backend player credentials for a lead
// whose deposit proof was just accepted.
type ProvisionUsecase struct {
	provisioner repo.ProvisionRepo
	leads       repo.LeadRepo
}

// NewProvisionUsecase creates the provisioning usecase.
func NewProvisionUsecase(provisioner repo.ProvisionRepo, leads repo.LeadRepo) *ProvisionUsecase {
	return &ProvisionUsecase{provisioner: provisioner, leads: leads}
}

// Deliver provisions credentials and records them on the lead. A backend
// failure moves the lead to the escalation stage for manual handling instead
// of surfacing an error: the deposit itself is already confirmed.
func (uc *ProvisionUsecase) Deliver(ctx context.Context, tenant *domain.Tenant, lead *domain.LeadState) {
	creds, err := uc.provisioner.Provision(ctx, tenant, lead.ID, lead.Amount)
	if err != nil {
		log.Printf("[Provision] tenant=%s lead=%d backend failed, escalating: %v", tenant.Name, lead.ID, err)
		stage := tenant.Stages.EscalationStage()
		if stage != 0 {
			if uerr := uc.leads.UpdateLead(ctx, tenant, lead.ID, domain.LeadUpdate{StageID: &stage}); uerr != nil {
				log.Printf("[Provision] tenant=%s lead=%d escalation write failed: %v", tenant.Name, lead.ID, uerr)
			}
		}
		return
	}

	note := fmt.Sprintf("Player account created. Username: %s Password: %s", creds.Username, creds.Password)
	if err := uc.leads.AppendNote(ctx, tenant, lead.ID, note); err != nil {
		log.Printf("[Provision] tenant=%s lead=%d credentials note failed: %v", tenant.Name, lead.ID, err)
	}

	if stage := tenant.Stages.Transferred; stage != 0 {
		if err := uc.leads.UpdateLead(ctx, tenant, lead.ID, domain.LeadUpdate{StageID: &stage}); err != nil {
			log.Printf("[Provision] tenant=%s lead=%d transfer write failed: %v", tenant.Name, lead.ID, err)
		}
	}
}
