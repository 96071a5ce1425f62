package conf

import (
	"os"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// HTTP listen port
	Port int

	// Path to the static tenant table
	TenantsPath string

	// Path to the local delivery journal database
	JournalPath string

	// Classifier configuration
	Classifier ClassifierConfig

	// Debug mode
	Debug bool
}

// ClassifierConfig contains vision classifier configuration. An empty APIKey
// disables classification (the gateway then fails open).
type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	port := 8080
	if val := os.Getenv("PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			port = parsed
		}
	}

	tenantsPath := os.Getenv("TENANTS_CONFIG_PATH")
	if tenantsPath == "" {
		tenantsPath = "tenants.yaml"
	}

	journalPath := os.Getenv("JOURNAL_DB_PATH")
	if journalPath == "" {
		journalPath = "data/journal.db"
	}

	return &Config{
		Port:        port,
		TenantsPath: tenantsPath,
		JournalPath: journalPath,
		Classifier: ClassifierConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("VISION_MODEL"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TenantsPath == "" {
		return &ConfigError{Field: "TENANTS_CONFIG_PATH", Message: "required"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "PORT", Message: "must be a valid port number"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
