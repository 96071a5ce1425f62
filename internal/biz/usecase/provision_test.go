package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

func TestDeliver_SuccessNotesCredentialsAndTransfers(t *testing.T) {
	tenant := testTenant()
	tenant.Backend = &domain.BackendConfig{URL: "https://backend.example.com/players"}
	leads := &mockLeadRepo{lead: &domain.LeadState{ID: 502, StageID: 142, Amount: 150}}
	prov := &mockProvisioner{creds: &domain.PlayerCredentials{Username: "player502", Password: "s3cret"}}
	uc := NewProvisionUsecase(prov, leads)

	uc.Deliver(context.Background(), tenant, leads.lead)

	if prov.calls != 1 {
		t.Fatalf("provision calls = %d, want 1", prov.calls)
	}
	if len(leads.notes) != 1 || !strings.Contains(leads.notes[0], "player502") {
		t.Errorf("notes = %v, want one with credentials", leads.notes)
	}
	if leads.lead.StageID != tenant.Stages.Transferred {
		t.Errorf("stage = %d, want transferred %d", leads.lead.StageID, tenant.Stages.Transferred)
	}
}

func TestDeliver_BackendFailureEscalates(t *testing.T) {
	tenant := testTenant()
	tenant.Backend = &domain.BackendConfig{URL: "https://backend.example.com/players"}
	leads := &mockLeadRepo{lead: &domain.LeadState{ID: 502, StageID: 142}}
	prov := &mockProvisioner{err: errors.New("backend down")}
	uc := NewProvisionUsecase(prov, leads)

	uc.Deliver(context.Background(), tenant, leads.lead)

	if len(leads.notes) != 0 {
		t.Errorf("notes = %v, want none on failure", leads.notes)
	}
	if leads.lead.StageID != tenant.Stages.EscalationStage() {
		t.Errorf("stage = %d, want escalation %d", leads.lead.StageID, tenant.Stages.EscalationStage())
	}
}

func TestDeliver_NoTransferStageKeepsProofReceived(t *testing.T) {
	tenant := testTenant()
	tenant.Backend = &domain.BackendConfig{URL: "https://backend.example.com/players"}
	tenant.Stages.Transferred = 0
	leads := &mockLeadRepo{lead: &domain.LeadState{ID: 502, StageID: 142}}
	prov := &mockProvisioner{creds: &domain.PlayerCredentials{Username: "p", Password: "w"}}
	uc := NewProvisionUsecase(prov, leads)

	uc.Deliver(context.Background(), tenant, leads.lead)

	if leads.lead.StageID != 142 {
		t.Errorf("stage = %d, want unchanged 142", leads.lead.StageID)
	}
}
