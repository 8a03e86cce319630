// Package google streams assistant turns from the Gemini
// streamGenerateContent endpoint over server-sent events.
package google

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stepkit/step"
	"github.com/stepkit/step/providers/base"
)

// ProviderName is recorded on every AssistantMessage this package produces.
const ProviderName = "google"

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Config is the Gemini provider configuration.
type Config struct {
	base.Config

	// ThinkingEnabled asks for thought summaries; ThinkingBudget caps their
	// tokens. A nil budget leaves it to the server.
	ThinkingEnabled bool
	ThinkingBudget  *int

	ToolChoice     ToolChoice
	ToolResultRole Role
}

// Option adjusts a Config.
type Option func(*Config)

// WithAPIKey sets the key sent as the key query parameter.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom base URL. The model name and method are
// appended to it.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTemperature sets generationConfig.temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = &t }
}

// WithMaxOutputTokens sets generationConfig.maxOutputTokens.
func WithMaxOutputTokens(n int) Option {
	return func(c *Config) { c.MaxOutputTokens = &n }
}

// WithThinking enables thinking mode. A negative budget lets the model
// decide.
func WithThinking(budget int) Option {
	return func(c *Config) {
		c.ThinkingEnabled = true
		c.ThinkingBudget = &budget
	}
}

// WithToolChoice sets the function calling mode sent with tools.
func WithToolChoice(choice ToolChoice) Option {
	return func(c *Config) { c.ToolChoice = choice }
}

// WithToolResultRole overrides ToolResultRole for this provider.
func WithToolResultRole(role Role) Option {
	return func(c *Config) { c.ToolResultRole = role }
}

// WithCostFunc prices usage on every update.
func WithCostFunc(fn step.CostFunc) Option {
	return func(c *Config) { c.Cost = fn }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = &l }
}

// WithDebug appends request and chunk records to a JSONL file at path.
func WithDebug(path string) Option {
	return func(c *Config) { c.DebugPath = path }
}

// WithExtraHeader sets an additional HTTP header on every request.
func WithExtraHeader(key, value string) Option {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		c.ExtraHeaders[key] = value
	}
}

// WithExtraBody adds a custom field to the request body. Keys are sjson
// paths, e.g. "generationConfig.topK".
func WithExtraBody(key string, value any) Option {
	return func(c *Config) {
		if c.ExtraBody == nil {
			c.ExtraBody = make(map[string]any)
		}
		c.ExtraBody[key] = value
	}
}

var env = base.Env{
	Keys:    []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	BaseURL: "GEMINI_BASE_URL",
}

// New returns a provider for model. Unset key and base URL come from
// GEMINI_API_KEY (then GOOGLE_API_KEY) and GEMINI_BASE_URL. A missing key
// is not an error here; the first Stream reports it.
func New(model string, opts ...Option) step.Provider {
	var cfg Config
	for _, apply := range opts {
		apply(&cfg)
	}
	env.Apply(&cfg.Config)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ToolResultRole == "" {
		cfg.ToolResultRole = ToolResultRole
	}
	return &provider{model: model, cfg: cfg}
}

type provider struct {
	model string
	cfg   Config
}

var _ step.Provider = (*provider)(nil)
