package conf

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration
type Config struct {
	// Port is the HTTP API listen port
	Port int `env:"PORT" envDefault:"8080"`

	// BearerToken is the shared secret for the command API
	BearerToken string `env:"BEARER_TOKEN"`

	// WebhookURL receives one POST per session event
	WebhookURL string `env:"WEBHOOK_URL"`

	// Mnemonic is the secret recovery phrase the session identity derives from
	Mnemonic string `env:"SESSION_MNEMONIC"`

	// DisplayName is set on the session profile at startup
	DisplayName string `env:"SESSION_DISPLAY_NAME" envDefault:"Session Bridge"`

	// StorageFile is the path of the identity store database
	StorageFile string `env:"STORAGE_FILE"`

	// RPCURL is the session daemon's JSON-RPC endpoint
	RPCURL string `env:"SESSION_RPC_URL" envDefault:"http://127.0.0.1:9751"`

	// PollIntervalMS is the receive-poll cadence in milliseconds
	PollIntervalMS int `env:"POLL_INTERVAL_MS" envDefault:"2500"`

	// LogLevel is one of trace, debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.StorageFile == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.StorageFile = filepath.Join(homeDir, ".session-bridge", "identity.db")
	}

	return cfg, nil
}

// Validate validates the configuration. The mnemonic is checked first: the
// process must refuse to start without it.
func (c *Config) Validate() error {
	if c.Mnemonic == "" {
		return &ConfigError{Field: "SESSION_MNEMONIC", Message: "required"}
	}
	if c.BearerToken == "" {
		return &ConfigError{Field: "BEARER_TOKEN", Message: "required"}
	}
	if c.WebhookURL == "" {
		return &ConfigError{Field: "WEBHOOK_URL", Message: "required"}
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
