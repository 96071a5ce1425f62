package data

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/retry"
)

// attributionRepo posts conversion events to the tenant's ad-attribution
// API. The user identifier is hashed before it leaves the process.
type attributionRepo struct {
	hc     *http.Client
	policy retry.Policy
}

// NewAttributionRepo creates the attribution reporter.
func NewAttributionRepo() repo.AttributionRepo {
	return &attributionRepo{
		hc:     &http.Client{Timeout: 10 * time.Second},
		policy: retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second},
	}
}

func (r *attributionRepo) Report(ctx context.Context, tenant *domain.Tenant, trackingID string, amount float64) error {
	cfg := tenant.Attribution
	if cfg == nil || cfg.URL == "" {
		return nil
	}

	event := cfg.Event
	if event == "" {
		event = "purchase"
	}
	hash := sha256.Sum256([]byte(trackingID))
	body, err := json.Marshal(map[string]any{
		"click_id": hex.EncodeToString(hash[:]),
		"value":    amount,
		"currency": cfg.Currency,
		"event":    event,
	})
	if err != nil {
		return fmt.Errorf("attribution: encode event: %w", err)
	}

	return r.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("attribution: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.Token)
		}

		resp, err := r.hc.Do(req)
		if err != nil {
			return fmt.Errorf("attribution: post: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return retry.Permanent(fmt.Errorf("attribution: status %d", resp.StatusCode))
		}
		return nil
	})
}
