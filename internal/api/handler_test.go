package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/biz/usecase"
)

type mockResolver struct {
	tenant     *domain.Tenant
	resolveErr error
}

func (m *mockResolver) Known(route string) bool {
	return m.tenant != nil && m.tenant.Route == route
}

func (m *mockResolver) Entries(route string) []*domain.Tenant {
	if m.tenant == nil || m.tenant.Route != route {
		return nil
	}
	return []*domain.Tenant{m.tenant}
}

func (m *mockResolver) Resolve(ctx context.Context, route string, leadID int64) (*domain.Tenant, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.tenant, nil
}

type mockProcessor struct {
	outcome usecase.Outcome
	err     error
	calls   int
	lastEv  *domain.Event
}

func (m *mockProcessor) Process(ctx context.Context, tenant *domain.Tenant, ev *domain.Event) (usecase.Outcome, error) {
	m.calls++
	m.lastEv = ev
	return m.outcome, m.err
}

type mockJournal struct {
	records []repo.DeliveryRecord
	stats   repo.DeliveryStats
}

func (m *mockJournal) Record(ctx context.Context, rec repo.DeliveryRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *mockJournal) TenantStats(ctx context.Context, tenant string) (repo.DeliveryStats, error) {
	return m.stats, nil
}

func (m *mockJournal) Close() error { return nil }

func newTestServer(resolver Resolver, proc Processor, journal repo.JournalRepo) *Server {
	return NewServer(resolver, proc, journal, 0, false)
}

func postWebhook(t *testing.T, s *Server, route, contentType, body string) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+route, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

const chatMessageBody = `{
	"message": {
		"entity_id": "501",
		"message_type": "in",
		"attachments": [{"link": "https://files/x.jpg", "file_name": "x.jpg", "type": "picture"}]
	}
}`

func TestWebhook_UnknownTenantIs404(t *testing.T) {
	s := newTestServer(&mockResolver{}, &mockProcessor{}, nil)
	w, resp := postWebhook(t, s, "nobody", "application/json", chatMessageBody)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if resp.Success {
		t.Error("Success = true")
	}
}

func TestWebhook_UnrecognizedPayloadIs400(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	s := newTestServer(&mockResolver{tenant: tenant}, &mockProcessor{}, nil)
	w, resp := postWebhook(t, s, "alpha", "application/json", `{"unexpected": true}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp.Success {
		t.Error("Success = true")
	}
}

func TestWebhook_OutgoingMessageAcked(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	proc := &mockProcessor{}
	s := newTestServer(&mockResolver{tenant: tenant}, proc, nil)
	body := `{"message": {"entity_id": "501", "message_type": "out"}}`
	w, resp := postWebhook(t, s, "alpha", "application/json", body)
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("status = %d success = %v, want 200 ack", w.Code, resp.Success)
	}
	if proc.calls != 0 {
		t.Errorf("Process calls = %d, want 0", proc.calls)
	}
}

func TestWebhook_PipelineMismatchAckedAndDropped(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	proc := &mockProcessor{}
	s := newTestServer(&mockResolver{tenant: tenant, resolveErr: usecase.ErrPipelineMismatch}, proc, nil)
	w, resp := postWebhook(t, s, "alpha", "application/json", chatMessageBody)
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("status = %d success = %v, want 200 ack", w.Code, resp.Success)
	}
	if proc.calls != 0 {
		t.Errorf("Process calls = %d, want 0", proc.calls)
	}
}

func TestWebhook_ResolveFailureStill200(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	s := newTestServer(&mockResolver{tenant: tenant, resolveErr: errors.New("crm timeout")}, &mockProcessor{}, nil)
	w, resp := postWebhook(t, s, "alpha", "application/json", chatMessageBody)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp.Success {
		t.Error("Success = true, want false on resolution failure")
	}
}

func TestWebhook_ProcessFailureStill200(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	proc := &mockProcessor{err: errors.New("attachment feed unavailable")}
	journal := &mockJournal{}
	s := newTestServer(&mockResolver{tenant: tenant}, proc, journal)
	w, resp := postWebhook(t, s, "alpha", "application/json", chatMessageBody)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp.Success {
		t.Error("Success = true, want false on processing failure")
	}
	if len(journal.records) != 0 {
		t.Errorf("journal records = %d, want 0 on failure", len(journal.records))
	}
}

func TestWebhook_SuccessReturnsOutcomeAndJournals(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	proc := &mockProcessor{outcome: usecase.Outcome{
		Action:     usecase.ActionConfirmed,
		LeadID:     501,
		StageID:    143,
		RetryCount: 0,
	}}
	journal := &mockJournal{}
	s := newTestServer(&mockResolver{tenant: tenant}, proc, journal)

	w, resp := postWebhook(t, s, "alpha", "application/json", chatMessageBody)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d success = %v", w.Code, resp.Success)
	}
	data, _ := resp.Data.(map[string]any)
	if data["action"] != "confirmed" || data["lead_id"] != float64(501) || data["stage_id"] != float64(143) {
		t.Errorf("data = %v", data)
	}
	if proc.lastEv == nil || proc.lastEv.LeadID != 501 {
		t.Errorf("event = %+v", proc.lastEv)
	}
	if len(journal.records) != 1 || journal.records[0].Action != "confirmed" || journal.records[0].Tenant != "alpha" {
		t.Errorf("journal = %+v", journal.records)
	}
}

func TestWebhook_FormEncodedPayloadAccepted(t *testing.T) {
	tenant := &domain.Tenant{Name: "alpha", Route: "alpha"}
	proc := &mockProcessor{outcome: usecase.Outcome{Action: usecase.ActionRetried, LeadID: 501}}
	s := newTestServer(&mockResolver{tenant: tenant}, proc, nil)

	form := "message%5Badd%5D%5B0%5D%5Bentity_id%5D=501&message%5Badd%5D%5B0%5D%5Bentity_type%5D=lead&message%5Badd%5D%5B0%5D%5Btype%5D=incoming"
	w, resp := postWebhook(t, s, "alpha", "application/x-www-form-urlencoded", form)
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("status = %d success = %v body = %s", w.Code, resp.Success, w.Body.String())
	}
	if proc.calls != 1 {
		t.Errorf("Process calls = %d, want 1", proc.calls)
	}
}

func TestTenantHealth_ReportsConfigWithoutSecrets(t *testing.T) {
	tenant := &domain.Tenant{
		Name:        "alpha",
		Route:       "alpha",
		Subdomain:   "alpha",
		AccessToken: "super-secret",
		MaxRetries:  3,
		Backend:     &domain.BackendConfig{URL: "https://backend", APIKey: "also-secret"},
	}
	journal := &mockJournal{stats: repo.DeliveryStats{Total: 5, Confirmed: 2}}
	s := newTestServer(&mockResolver{tenant: tenant}, &mockProcessor{}, journal)

	req := httptest.NewRequest(http.MethodGet, "/webhook/alpha", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "super-secret") || strings.Contains(body, "also-secret") {
		t.Error("health response leaks credentials")
	}
	var resp WebhookResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data, _ := resp.Data.(map[string]any)
	tenants, _ := data["tenants"].([]any)
	if len(tenants) != 1 {
		t.Fatalf("tenants = %v", data["tenants"])
	}
	cfg, _ := tenants[0].(map[string]any)
	if cfg["backend"] != true || cfg["attribution"] != false {
		t.Errorf("cfg = %v", cfg)
	}
}

func TestTenantHealth_UnknownRouteIs404(t *testing.T) {
	s := newTestServer(&mockResolver{}, &mockProcessor{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/webhook/nobody", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHealth_Liveness(t *testing.T) {
	s := newTestServer(&mockResolver{}, &mockProcessor{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
