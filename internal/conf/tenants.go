package conf

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

// The tenant table is static YAML. Secrets are never written into it
// directly: values use "env:VAR" (or "${VAR}") indirection and are resolved
// exactly once here, at load time. Nothing in the request path touches the
// environment.

type tenantFile struct {
	Tenants []tenantEntry `yaml:"tenants"`
}

type tenantEntry struct {
	Name        string         `yaml:"name"`
	Route       string         `yaml:"route"`
	Subdomain   string         `yaml:"subdomain"`
	AccessToken string         `yaml:"accessToken"`
	PipelineID  int            `yaml:"pipelineId"`
	MaxRetries  int            `yaml:"maxRetries"`
	Stages      map[string]int `yaml:"stages"`
	Fields      struct {
		RetryCount int `yaml:"retryCount"`
		TrackingID int `yaml:"trackingId"`
		Amount     int `yaml:"amount"`
	} `yaml:"fields"`
	Backend *struct {
		URL      string `yaml:"url"`
		APIKey   string `yaml:"apiKey"`
		Currency string `yaml:"currency"`
		ProxyURL string `yaml:"proxyUrl"`
	} `yaml:"backend"`
	Attribution *struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		Currency string `yaml:"currency"`
		Event    string `yaml:"event"`
	} `yaml:"attribution"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadTenants reads and fully resolves the tenant table. It returns an error
// for any entry whose required secret cannot be resolved, so misconfiguration
// surfaces at startup instead of mid-request.
func LoadTenants(path string) ([]*domain.Tenant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants config: %w", err)
	}
	return ParseTenants(data)
}

// ParseTenants parses the tenant table from raw YAML.
func ParseTenants(data []byte) ([]*domain.Tenant, error) {
	var file tenantFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tenants config: %w", err)
	}
	if len(file.Tenants) == 0 {
		return nil, fmt.Errorf("tenants config: no tenants defined")
	}

	tenants := make([]*domain.Tenant, 0, len(file.Tenants))
	for _, entry := range file.Tenants {
		t, err := resolveEntry(entry)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

func resolveEntry(entry tenantEntry) (*domain.Tenant, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("tenants config: entry without name")
	}

	token, err := resolveSecret(entry.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: accessToken: %w", entry.Name, err)
	}
	if token == "" || entry.Subdomain == "" {
		return nil, fmt.Errorf("tenant %s: subdomain and accessToken are required", entry.Name)
	}

	route := entry.Route
	if route == "" {
		route = entry.Name
	}
	maxRetries := entry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	t := &domain.Tenant{
		Name:        entry.Name,
		Route:       route,
		Subdomain:   entry.Subdomain,
		AccessToken: token,
		PipelineID:  entry.PipelineID,
		MaxRetries:  maxRetries,
		Stages: domain.StageMap{
			WaitingForProof: entry.Stages["waitingForProof"],
			ProofReceived:   entry.Stages["proofReceived"],
			ProofRejected:   entry.Stages["proofRejected"],
			NoResponse:      entry.Stages["noResponse"],
			ManualHelp:      entry.Stages["manualHelp"],
			Retry:           entry.Stages["retry"],
			Transferred:     entry.Stages["transferred"],
		},
		Fields: domain.FieldMap{
			RetryCount: entry.Fields.RetryCount,
			TrackingID: entry.Fields.TrackingID,
			Amount:     entry.Fields.Amount,
		},
	}

	if t.Stages.WaitingForProof == 0 || t.Stages.ProofReceived == 0 {
		return nil, fmt.Errorf("tenant %s: stages waitingForProof and proofReceived are required", entry.Name)
	}
	// The state machine writes these on every rejected submission; a zero
	// stage ID would be sent to the CRM as-is.
	if t.Stages.RejectedStage() == 0 {
		return nil, fmt.Errorf("tenant %s: a retry or proofRejected stage is required", entry.Name)
	}
	if t.Stages.EscalationStage() == 0 {
		return nil, fmt.Errorf("tenant %s: a manualHelp or noResponse stage is required", entry.Name)
	}

	if entry.Backend != nil {
		key, err := resolveSecret(entry.Backend.APIKey)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: backend.apiKey: %w", entry.Name, err)
		}
		t.Backend = &domain.BackendConfig{
			URL:      entry.Backend.URL,
			APIKey:   key,
			Currency: entry.Backend.Currency,
			ProxyURL: entry.Backend.ProxyURL,
		}
	}
	if entry.Attribution != nil {
		token, err := resolveSecret(entry.Attribution.Token)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: attribution.token: %w", entry.Name, err)
		}
		t.Attribution = &domain.AttributionConfig{
			URL:      entry.Attribution.URL,
			Token:    token,
			Currency: entry.Attribution.Currency,
			Event:    entry.Attribution.Event,
		}
	}
	return t, nil
}

// resolveSecret resolves "env:VAR" markers and ${VAR} expansions. A marker
// pointing at an unset variable is an error; literal values pass through.
func resolveSecret(value string) (string, error) {
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		resolved := os.Getenv(name)
		if resolved == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return resolved, nil
	}

	var missing string
	expanded := envVarPattern.ReplaceAllStringFunc(value, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		v := os.Getenv(name)
		if v == "" && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("environment variable %s is not set", missing)
	}
	return expanded, nil
}
