package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/retry"
)

// Backends fingerprint and throttle by client, so requests rotate through a
// small set of ordinary browser user agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

var uaCounter atomic.Uint64

func nextUserAgent() string {
	n := uaCounter.Add(1)
	return userAgents[int(n)%len(userAgents)]
}

// provisionRepo provisions player accounts on the tenant's gaming backend,
// optionally through the tenant's HTTP proxy.
type provisionRepo struct {
	policy retry.Policy
}

// NewProvisionRepo creates the backend provisioner.
func NewProvisionRepo() repo.ProvisionRepo {
	return &provisionRepo{policy: retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second}}
}

func (r *provisionRepo) Provision(ctx context.Context, tenant *domain.Tenant, leadID int64, amount float64) (*domain.PlayerCredentials, error) {
	cfg := tenant.Backend
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("provision: no backend configured for tenant %s", tenant.Name)
	}

	hc, err := r.clientFor(cfg)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"lead_id":  leadID,
		"amount":   amount,
		"currency": cfg.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("provision: encode request: %w", err)
	}

	var creds domain.PlayerCredentials
	err = r.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("provision: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", nextUserAgent())
		if cfg.APIKey != "" {
			req.Header.Set("X-Api-Key", cfg.APIKey)
		}

		resp, err := hc.Do(req)
		if err != nil {
			return fmt.Errorf("provision: post: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return retry.Permanent(fmt.Errorf("provision: status %d", resp.StatusCode))
		}

		var out struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return retry.Permanent(fmt.Errorf("provision: decode response: %w", err))
		}
		if out.Username == "" {
			return retry.Permanent(fmt.Errorf("provision: empty credentials in response"))
		}
		creds = domain.PlayerCredentials{Username: out.Username, Password: out.Password}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

func (r *provisionRepo) clientFor(cfg *domain.BackendConfig) (*http.Client, error) {
	hc := &http.Client{Timeout: 15 * time.Second}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("provision: invalid proxy url: %w", err)
		}
		hc.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return hc, nil
}
