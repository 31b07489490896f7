package orchestrator

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/achintir-projects/elite-ai-agent/agent"
	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
)

// Config defines scheduling behavior.
type Config struct {
	// MaxConcurrentTasks caps tasks in progress at once; zero is unlimited.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// TaskTimeout bounds a single attempt; zero disables the timeout.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	EnableRetry bool          `mapstructure:"enable_retry"`
	// MaxRetries counts retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is multiplied by the attempt number before each retry.
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	EnableAuditLog bool          `mapstructure:"enable_audit_log"`
	// EventBuffer sizes the channels returned by Watch.
	EventBuffer int `mapstructure:"event_buffer"`
}

// DefaultConfig returns the baseline scheduling policy.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 3,
		TaskTimeout:        5 * time.Minute,
		EnableRetry:        true,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		EnableAuditLog:     true,
		EventBuffer:        64,
	}
}

// Options configures an Orchestrator.
type Options struct {
	Config
	// Store holds the task table; nil uses an in-memory store.
	Store core.Store[*core.Task]
	// Memory receives task memories, attempt steps, audit entries and results.
	Memory Journal
	// Factory builds agents for RegisterAgent.
	Factory *agent.Factory
	Logger  logging.Logger
	// Tracer records one span per attempt; nil uses the global provider.
	Tracer trace.Tracer
}
