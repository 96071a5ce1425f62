package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/retry"
)

// kommoRepo implements the lead state store against the Kommo (amoCRM) v4
// REST API. Credentials come from the tenant on every call; the client holds
// no per-tenant state.
type kommoRepo struct {
	hc          *http.Client
	baseURL     func(tenant *domain.Tenant) string
	writePolicy retry.Policy
}

// NewKommoRepo creates the CRM-backed lead repository.
func NewKommoRepo() repo.LeadRepo {
	return &kommoRepo{
		hc: &http.Client{Timeout: 10 * time.Second},
		baseURL: func(t *domain.Tenant) string {
			return fmt.Sprintf("https://%s.kommo.com", t.Subdomain)
		},
		// Writes get 2 extra attempts on transient network failure.
		writePolicy: retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second},
	}
}

// NewKommoRepoWithBase creates the repository against a fixed base URL,
// ignoring the tenant subdomain. Used in tests.
func NewKommoRepoWithBase(base string) repo.LeadRepo {
	return &kommoRepo{
		hc:          &http.Client{Timeout: 10 * time.Second},
		baseURL:     func(*domain.Tenant) string { return base },
		writePolicy: retry.Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond},
	}
}

// ---- wire types ----

type kommoLead struct {
	ID           int64             `json:"id"`
	StatusID     int               `json:"status_id"`
	PipelineID   int               `json:"pipeline_id"`
	CustomFields []kommoFieldValue `json:"custom_fields_values"`
}

type kommoFieldValue struct {
	FieldID int `json:"field_id"`
	Values  []struct {
		Value any `json:"value"`
	} `json:"values"`
}

func (f kommoFieldValue) first() any {
	if len(f.Values) == 0 {
		return nil
	}
	return f.Values[0].Value
}

type kommoEventsPage struct {
	Embedded struct {
		Events []struct {
			ValueAfter []struct {
				Message *struct {
					Attachment *struct {
						Link     string `json:"link"`
						FileName string `json:"file_name"`
						Type     string `json:"type"`
					} `json:"attachment"`
				} `json:"message"`
			} `json:"value_after"`
		} `json:"events"`
	} `json:"_embedded"`
}

type kommoNotesPage struct {
	Embedded struct {
		Notes []struct {
			Params struct {
				Link     string `json:"link"`
				URL      string `json:"url"`
				FileName string `json:"file_name"`
			} `json:"params"`
		} `json:"notes"`
	} `json:"_embedded"`
}

// ---- repo implementation ----

func (r *kommoRepo) FetchLead(ctx context.Context, tenant *domain.Tenant, leadID int64) (*domain.LeadState, error) {
	body, status, err := r.get(ctx, tenant, fmt.Sprintf("/api/v4/leads/%d", leadID))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("kommo: fetch lead %d: status %d", leadID, status)
	}

	var raw kommoLead
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("kommo: decode lead %d: %w", leadID, err)
	}

	lead := &domain.LeadState{
		ID:         raw.ID,
		StageID:    raw.StatusID,
		PipelineID: raw.PipelineID,
	}
	for _, f := range raw.CustomFields {
		switch f.FieldID {
		case tenant.Fields.RetryCount:
			lead.RetryCount = toInt(f.first())
		case tenant.Fields.TrackingID:
			lead.TrackingID = toString(f.first())
		case tenant.Fields.Amount:
			lead.Amount = toFloat(f.first())
		}
	}
	return lead, nil
}

func (r *kommoRepo) UpdateLead(ctx context.Context, tenant *domain.Tenant, leadID int64, update domain.LeadUpdate) error {
	payload := map[string]any{}
	if update.StageID != nil {
		payload["status_id"] = *update.StageID
	}
	var fields []map[string]any
	if update.RetryCount != nil && tenant.Fields.RetryCount != 0 {
		fields = append(fields, fieldValue(tenant.Fields.RetryCount, strconv.Itoa(*update.RetryCount)))
	}
	if update.TrackingID != nil && tenant.Fields.TrackingID != 0 {
		fields = append(fields, fieldValue(tenant.Fields.TrackingID, *update.TrackingID))
	}
	if len(fields) > 0 {
		payload["custom_fields_values"] = fields
	}
	if len(payload) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kommo: encode update: %w", err)
	}

	return r.writePolicy.Do(ctx, func() error {
		_, status, err := r.do(ctx, tenant, http.MethodPatch, fmt.Sprintf("/api/v4/leads/%d", leadID), body)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			// Application-level rejection: retrying will not change it.
			return retry.Permanent(fmt.Errorf("kommo: update lead %d: status %d", leadID, status))
		}
		return nil
	})
}

func (r *kommoRepo) AppendNote(ctx context.Context, tenant *domain.Tenant, leadID int64, text string) error {
	body, err := json.Marshal([]map[string]any{{
		"note_type": "common",
		"params":    map[string]string{"text": text},
	}})
	if err != nil {
		return fmt.Errorf("kommo: encode note: %w", err)
	}

	return r.writePolicy.Do(ctx, func() error {
		_, status, err := r.do(ctx, tenant, http.MethodPost, fmt.Sprintf("/api/v4/leads/%d/notes", leadID), body)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			return retry.Permanent(fmt.Errorf("kommo: append note to lead %d: status %d", leadID, status))
		}
		return nil
	})
}

func (r *kommoRepo) FetchLastAttachment(ctx context.Context, tenant *domain.Tenant, leadID int64) (*domain.Attachment, error) {
	// Events feed first: chat messages land there with the attachment inline.
	body, status, err := r.get(ctx, tenant, fmt.Sprintf("/api/v4/events?filter[entity]=lead&filter[entity_id]=%d&limit=20", leadID))
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		var page kommoEventsPage
		if err := json.Unmarshal(body, &page); err == nil {
			for _, ev := range page.Embedded.Events {
				for _, va := range ev.ValueAfter {
					if va.Message == nil || va.Message.Attachment == nil || va.Message.Attachment.Link == "" {
						continue
					}
					att := va.Message.Attachment
					return &domain.Attachment{
						URL:  att.Link,
						Name: att.FileName,
						Kind: attachmentKind(att.Type),
					}, nil
				}
			}
		}
	}

	// Notes feed second.
	body, status, err = r.get(ctx, tenant, fmt.Sprintf("/api/v4/leads/%d/notes?limit=20&order[created_at]=desc", leadID))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, nil
	}
	var page kommoNotesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil
	}
	for _, n := range page.Embedded.Notes {
		u := n.Params.Link
		if u == "" {
			u = n.Params.URL
		}
		if u == "" {
			continue
		}
		return &domain.Attachment{URL: u, Name: n.Params.FileName, Kind: domain.AttachmentFile}, nil
	}
	return nil, nil
}

func (r *kommoRepo) FetchPipelineID(ctx context.Context, tenant *domain.Tenant, leadID int64) (int, error) {
	body, status, err := r.get(ctx, tenant, fmt.Sprintf("/api/v4/leads/%d", leadID))
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("kommo: fetch lead %d: status %d", leadID, status)
	}
	var raw kommoLead
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("kommo: decode lead %d: %w", leadID, err)
	}
	return raw.PipelineID, nil
}

// ---- transport helpers ----

func (r *kommoRepo) get(ctx context.Context, tenant *domain.Tenant, path string) ([]byte, int, error) {
	return r.do(ctx, tenant, http.MethodGet, path, nil)
}

func (r *kommoRepo) do(ctx context.Context, tenant *domain.Tenant, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL(tenant)+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("kommo: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tenant.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("kommo: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("kommo: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func fieldValue(fieldID int, value any) map[string]any {
	return map[string]any{
		"field_id": fieldID,
		"values":   []map[string]any{{"value": value}},
	}
}

func attachmentKind(t string) domain.AttachmentKind {
	switch t {
	case "picture", "image", "sticker":
		return domain.AttachmentImage
	case "video", "file", "voice", "audio", "document", "":
		return domain.AttachmentFile
	}
	return domain.AttachmentUnknown
}

// Custom field values arrive as strings or numbers depending on field type.

func toInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}
