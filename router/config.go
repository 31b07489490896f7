package router

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/model"
)

// RateLimit bounds requests per model within a sliding window. Requests <= 0
// disables limiting.
type RateLimit struct {
	Requests int           `json:"requests" mapstructure:"requests"`
	Window   time.Duration `json:"window" mapstructure:"window"`
}

// Config holds the router policy.
type Config struct {
	DefaultModel   string
	FallbackModels []string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the total number of attempts on the selected model.
	MaxRetries int
	// CostBudget caps the running cost; zero disables budgeting.
	CostBudget     float64
	RateLimit      RateLimit
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BatchSize      int
	// CharsPerToken is the divisor used to estimate tokens from text length.
	CharsPerToken  int
	LatencySamples int
	HealthCacheTTL time.Duration
}

// DefaultConfig returns the baseline router policy.
func DefaultConfig() Config {
	return Config{
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		RateLimit:      RateLimit{Requests: 60, Window: time.Minute},
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BatchSize:      5,
		CharsPerToken:  4,
		LatencySamples: 100,
		HealthCacheTTL: 5 * time.Second,
	}
}

// Options configures a Router.
type Options struct {
	Config
	// Backend serves every model without a dedicated backend.
	Backend model.Model
	Logger  logging.Logger
	// Meter receives router instruments; nil uses the global provider.
	Meter metric.Meter
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = d.CharsPerToken
	}
	if c.LatencySamples <= 0 {
		c.LatencySamples = d.LatencySamples
	}
	if c.HealthCacheTTL < 0 {
		c.HealthCacheTTL = 0
	}
	return c
}
