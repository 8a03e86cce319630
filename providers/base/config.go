package base

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stepkit/step"
)

// .env in the working directory, when present, seeds the process
// environment before any provider reads it.
func init() {
	_ = godotenv.Load()
}

// Config holds the settings every provider shares.
type Config struct {
	APIKey  string
	BaseURL string

	// Debug options
	// DebugPath writes JSONL debug records (request/chunk) when set.
	DebugPath string

	// Logger receives provider diagnostics. Nil means the global zerolog logger.
	Logger *zerolog.Logger

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	// Cost prices usage snapshots. Nil leaves cost at zero.
	Cost step.CostFunc

	// Generation options
	MaxOutputTokens *int
	Temperature     *float64

	// Extra options
	ExtraHeaders map[string]string
	ExtraBody    map[string]any
}

// Env names the environment variables a provider falls back to.
type Env struct {
	// Keys are tried in order; the first non-empty value wins.
	Keys    []string
	BaseURL string
}

// Apply fills APIKey and BaseURL from the environment when they are unset.
func (e Env) Apply(cfg *Config) {
	for _, name := range e.Keys {
		if cfg.APIKey != "" {
			break
		}
		cfg.APIKey = os.Getenv(name)
	}
	if cfg.BaseURL == "" && e.BaseURL != "" {
		cfg.BaseURL = os.Getenv(e.BaseURL)
	}
}

// Client returns the configured HTTP client or http.DefaultClient.
func (c *Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
