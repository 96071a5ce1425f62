package domain

// FieldMap holds the per-tenant CRM custom field IDs this system reads and
// writes on a lead. Zero means the field is not configured for the tenant.
type FieldMap struct {
	RetryCount int
	TrackingID int
	Amount     int
}

// BackendConfig is the optional gaming-backend provisioning sub-config.
type BackendConfig struct {
	URL      string
	APIKey   string
	Currency string
	ProxyURL string
}

// AttributionConfig is the optional ad-attribution reporting sub-config.
type AttributionConfig struct {
	URL      string
	Token    string
	Currency string
	Event    string
}

// Tenant is one fully resolved client configuration. It is built once at
// startup from the static tenant table (with env-var secrets already
// resolved) and is read-only for the lifetime of the process.
type Tenant struct {
	Name  string
	Route string

	// CRM credentials.
	Subdomain   string
	AccessToken string

	// PipelineID is set for multi-pipeline tenants, where several entries
	// share a webhook route and the lead's own pipeline decides which one
	// applies. Zero for single-pipeline tenants.
	PipelineID int

	Stages     StageMap
	Fields     FieldMap
	MaxRetries int

	Backend     *BackendConfig
	Attribution *AttributionConfig
}
