// Package config loads the engine configuration from built-in defaults, a
// user config file, a project config file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/achintir-projects/elite-ai-agent/agent"
	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/memory"
	"github.com/achintir-projects/elite-ai-agent/orchestrator"
	"github.com/achintir-projects/elite-ai-agent/router"
	"github.com/achintir-projects/elite-ai-agent/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. ELITE_ROUTER_DEFAULT_MODEL.
const EnvPrefix = "ELITE"

// ProjectConfigNames are searched from the working directory upwards.
var ProjectConfigNames = []string{"elite.yaml", ".elite.yaml"}

// Config holds all configuration for the engine.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Router       RouterConfig       `mapstructure:"router" yaml:"router"`
	Memory       MemoryConfig       `mapstructure:"memory" yaml:"memory"`
	Tools        ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Providers    ProvidersConfig    `mapstructure:"providers" yaml:"providers"`
	Models       []ModelEntry       `mapstructure:"models" yaml:"models,omitempty"`
	Agents       []AgentEntry       `mapstructure:"agents" yaml:"agents,omitempty"`
	// AgentManifest names a YAML file of agent definitions appended to Agents.
	AgentManifest string `mapstructure:"agent_manifest" yaml:"agent_manifest,omitempty"`
}

// OrchestratorConfig holds scheduling settings.
type OrchestratorConfig struct {
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	EnableRetry        bool          `mapstructure:"enable_retry" yaml:"enable_retry"`
	MaxRetries         int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	EnableAuditLog     bool          `mapstructure:"enable_audit_log" yaml:"enable_audit_log"`
}

// RouterConfig holds model routing settings.
type RouterConfig struct {
	DefaultModel   string          `mapstructure:"default_model" yaml:"default_model"`
	FallbackModels []string        `mapstructure:"fallback_models" yaml:"fallback_models,omitempty"`
	Timeout        time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries     int             `mapstructure:"max_retries" yaml:"max_retries"`
	CostBudget     float64         `mapstructure:"cost_budget" yaml:"cost_budget"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	InitialBackoff time.Duration   `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration   `mapstructure:"max_backoff" yaml:"max_backoff"`
	BatchSize      int             `mapstructure:"batch_size" yaml:"batch_size"`
}

// RateLimitConfig bounds requests per model within a window.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" yaml:"requests"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

// MemoryConfig holds memory limits.
type MemoryConfig struct {
	MaxTaskMemory     int               `mapstructure:"max_task_memory" yaml:"max_task_memory"`
	MaxRepoMemory     int               `mapstructure:"max_repo_memory" yaml:"max_repo_memory"`
	CacheTTL          time.Duration     `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	SweepInterval     time.Duration     `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	EnableVectorStore bool              `mapstructure:"enable_vector_store" yaml:"enable_vector_store"`
	VectorStore       VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
}

// VectorStoreConfig configures similarity search.
type VectorStoreConfig struct {
	Dimension           int           `mapstructure:"dimension" yaml:"dimension"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	CacheLifetime       time.Duration `mapstructure:"cache_lifetime" yaml:"cache_lifetime"`
	QdrantURL           string        `mapstructure:"qdrant_url" yaml:"qdrant_url,omitempty"`
	QdrantAPIKey        string        `mapstructure:"qdrant_api_key" yaml:"qdrant_api_key,omitempty"`
	Collection          string        `mapstructure:"collection" yaml:"collection"`
}

// ToolsConfig holds tool registry settings.
type ToolsConfig struct {
	WorkDir string            `mapstructure:"work_dir" yaml:"work_dir"`
	Env     map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

// StoreConfig selects the task table backend.
type StoreConfig struct {
	// Driver is memory or sqlite.
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path,omitempty"`
	// ArtifactsDir, when set, writes generated files below this directory
	// instead of keeping them in memory.
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir,omitempty"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Format    string `mapstructure:"format" yaml:"format"`
	AddSource bool   `mapstructure:"add_source" yaml:"add_source"`
}

// TelemetryConfig selects the OTLP collector; an empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ServiceName    string        `mapstructure:"service_name" yaml:"service_name"`
	Insecure       bool          `mapstructure:"insecure" yaml:"insecure"`
	MetricInterval time.Duration `mapstructure:"metric_interval" yaml:"metric_interval"`
}

// ProvidersConfig holds model backend credentials.
type ProvidersConfig struct {
	// Default is the backend serving models without an explicit provider.
	Default   string          `mapstructure:"default" yaml:"default"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model      string `mapstructure:"model" yaml:"model,omitempty"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region,omitempty"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile,omitempty"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model   string `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// ModelEntry registers a model with the router.
type ModelEntry struct {
	Name              string  `mapstructure:"name" yaml:"name"`
	Provider          string  `mapstructure:"provider" yaml:"provider,omitempty"`
	Capability        string  `mapstructure:"capability" yaml:"capability,omitempty"`
	MaxContextTokens  int     `mapstructure:"max_context_tokens" yaml:"max_context_tokens"`
	SupportsStreaming bool    `mapstructure:"supports_streaming" yaml:"supports_streaming"`
	CostPerToken      float64 `mapstructure:"cost_per_token" yaml:"cost_per_token,omitempty"`
}

// AgentEntry defines one agent instance.
type AgentEntry struct {
	ID          string   `mapstructure:"id" yaml:"id"`
	Kind        string   `mapstructure:"kind" yaml:"kind"`
	Model       string   `mapstructure:"model" yaml:"model,omitempty"`
	Temperature float64  `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	Tools       []string `mapstructure:"tools" yaml:"tools,omitempty"`
}

// Load reads configuration. Precedence, highest first:
//  1. Environment (ELITE_* plus ANTHROPIC_API_KEY and OPENAI_API_KEY)
//  2. Project config: path when given, else elite.yaml in the working
//     directory or a parent
//  3. User config ($XDG_CONFIG_HOME/elite/config.yaml)
//  4. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(UserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	project := path
	if project == "" {
		project = findProjectConfig()
	}
	if project != "" {
		pv := viper.New()
		pv.SetConfigFile(project)
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", project, err)
		}
		if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.anthropic.api_key", EnvPrefix+"_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", EnvPrefix+"_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Providers.Anthropic.APIKey = os.ExpandEnv(cfg.Providers.Anthropic.APIKey)
	cfg.Providers.OpenAI.APIKey = os.ExpandEnv(cfg.Providers.OpenAI.APIKey)
	cfg.Memory.VectorStore.QdrantAPIKey = os.ExpandEnv(cfg.Memory.VectorStore.QdrantAPIKey)

	if cfg.AgentManifest != "" {
		manifest := cfg.AgentManifest
		if !filepath.IsAbs(manifest) && project != "" {
			manifest = filepath.Join(filepath.Dir(project), manifest)
		}
		entries, err := LoadAgentManifest(manifest)
		if err != nil {
			return nil, err
		}
		cfg.Agents = append(cfg.Agents, entries...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("orchestrator.max_concurrent_tasks", d.Orchestrator.MaxConcurrentTasks)
	v.SetDefault("orchestrator.task_timeout", d.Orchestrator.TaskTimeout.String())
	v.SetDefault("orchestrator.enable_retry", d.Orchestrator.EnableRetry)
	v.SetDefault("orchestrator.max_retries", d.Orchestrator.MaxRetries)
	v.SetDefault("orchestrator.retry_delay", d.Orchestrator.RetryDelay.String())
	v.SetDefault("orchestrator.enable_audit_log", d.Orchestrator.EnableAuditLog)

	v.SetDefault("router.default_model", d.Router.DefaultModel)
	v.SetDefault("router.timeout", d.Router.Timeout.String())
	v.SetDefault("router.max_retries", d.Router.MaxRetries)
	v.SetDefault("router.cost_budget", d.Router.CostBudget)
	v.SetDefault("router.rate_limit.requests", d.Router.RateLimit.Requests)
	v.SetDefault("router.rate_limit.window", d.Router.RateLimit.Window.String())
	v.SetDefault("router.initial_backoff", d.Router.InitialBackoff.String())
	v.SetDefault("router.max_backoff", d.Router.MaxBackoff.String())
	v.SetDefault("router.batch_size", d.Router.BatchSize)

	v.SetDefault("memory.max_task_memory", d.Memory.MaxTaskMemory)
	v.SetDefault("memory.max_repo_memory", d.Memory.MaxRepoMemory)
	v.SetDefault("memory.cache_ttl", d.Memory.CacheTTL.String())
	v.SetDefault("memory.sweep_interval", d.Memory.SweepInterval.String())
	v.SetDefault("memory.enable_vector_store", d.Memory.EnableVectorStore)
	v.SetDefault("memory.vector_store.dimension", d.Memory.VectorStore.Dimension)
	v.SetDefault("memory.vector_store.similarity_threshold", d.Memory.VectorStore.SimilarityThreshold)
	v.SetDefault("memory.vector_store.cache_lifetime", d.Memory.VectorStore.CacheLifetime.String())
	v.SetDefault("memory.vector_store.qdrant_url", "")
	v.SetDefault("memory.vector_store.qdrant_api_key", "")
	v.SetDefault("memory.vector_store.collection", d.Memory.VectorStore.Collection)

	v.SetDefault("tools.work_dir", d.Tools.WorkDir)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.artifacts_dir", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.add_source", d.Logging.AddSource)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.metric_interval", d.Telemetry.MetricInterval.String())

	v.SetDefault("providers.default", d.Providers.Default)
	v.SetDefault("providers.anthropic.model", d.Providers.Anthropic.Model)
	v.SetDefault("providers.anthropic.use_bedrock", false)
	v.SetDefault("providers.anthropic.aws_region", "")
	v.SetDefault("providers.anthropic.aws_profile", "")
	v.SetDefault("providers.openai.model", d.Providers.OpenAI.Model)
	v.SetDefault("providers.openai.base_url", "")

	v.SetDefault("agent_manifest", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	oc := orchestrator.DefaultConfig()
	rc := router.DefaultConfig()
	mc := memory.DefaultConfig()
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrentTasks: oc.MaxConcurrentTasks,
			TaskTimeout:        oc.TaskTimeout,
			EnableRetry:        oc.EnableRetry,
			MaxRetries:         oc.MaxRetries,
			RetryDelay:         oc.RetryDelay,
			EnableAuditLog:     oc.EnableAuditLog,
		},
		Router: RouterConfig{
			DefaultModel:   "claude-sonnet-4-20250514",
			Timeout:        rc.Timeout,
			MaxRetries:     rc.MaxRetries,
			RateLimit:      RateLimitConfig{Requests: rc.RateLimit.Requests, Window: rc.RateLimit.Window},
			InitialBackoff: rc.InitialBackoff,
			MaxBackoff:     rc.MaxBackoff,
			BatchSize:      rc.BatchSize,
		},
		Memory: MemoryConfig{
			MaxTaskMemory:     mc.MaxTaskMemory,
			MaxRepoMemory:     mc.MaxRepoMemory,
			CacheTTL:          mc.CacheTTL,
			SweepInterval:     mc.SweepInterval,
			EnableVectorStore: mc.EnableVectorStore,
			VectorStore: VectorStoreConfig{
				Dimension:           mc.VectorStore.Dimension,
				SimilarityThreshold: mc.VectorStore.SimilarityThreshold,
				CacheLifetime:       mc.VectorStore.CacheLifetime,
				Collection:          mc.VectorStore.Collection,
			},
		},
		Tools:     ToolsConfig{WorkDir: "."},
		Store:     StoreConfig{Driver: "memory", Path: filepath.Join(".elite", "elite.db")},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{ServiceName: "elite-ai-agent", MetricInterval: 30 * time.Second},
		Providers: ProvidersConfig{
			Default:   "anthropic",
			Anthropic: AnthropicConfig{Model: "claude-sonnet-4-20250514"},
			OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		},
	}
}

// Validate reports every violation at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	o := c.Orchestrator
	if o.MaxConcurrentTasks < 0 {
		add("orchestrator.max_concurrent_tasks must not be negative")
	}
	if o.MaxRetries < 0 {
		add("orchestrator.max_retries must not be negative")
	}
	if o.TaskTimeout < 0 || o.RetryDelay < 0 {
		add("orchestrator durations must not be negative")
	}

	r := c.Router
	if r.MaxRetries < 0 {
		add("router.max_retries must not be negative")
	}
	if r.CostBudget < 0 {
		add("router.cost_budget must not be negative")
	}
	if r.RateLimit.Requests > 0 && r.RateLimit.Window <= 0 {
		add("router.rate_limit.window must be positive when requests is set")
	}

	if c.Memory.MaxTaskMemory <= 0 || c.Memory.MaxRepoMemory <= 0 {
		add("memory limits must be positive")
	}
	if c.Memory.EnableVectorStore && c.Memory.VectorStore.Dimension <= 0 {
		add("memory.vector_store.dimension must be positive")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			add("store.path is required for the sqlite driver")
		}
	default:
		add("store.driver %q must be memory or sqlite", c.Store.Driver)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level %q is not a level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		add("logging.format %q must be json or text", c.Logging.Format)
	}

	switch c.Providers.Default {
	case "anthropic", "openai":
	default:
		add("providers.default %q must be anthropic or openai", c.Providers.Default)
	}

	seen := map[string]bool{}
	for i, m := range c.Models {
		if err := m.ModelConfig().Validate(); err != nil {
			add("models[%d]: %v", i, err)
		}
		if seen[m.Name] {
			add("models[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Provider != "" && m.Provider != "anthropic" && m.Provider != "openai" {
			add("models[%d]: provider %q must be anthropic or openai", i, m.Provider)
		}
	}

	ids := map[string]bool{}
	for i, a := range c.Agents {
		cfg, err := a.AgentConfig()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			add("agents[%d]: %v", i, err)
		}
		if ids[a.ID] {
			add("agents[%d]: duplicate id %q", i, a.ID)
		}
		ids[a.ID] = true
	}

	if len(problems) > 0 {
		return core.NewValidationError("config.Validate", "invalid configuration", problems...)
	}
	return nil
}

// OrchestratorConfig converts the orchestrator section.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.MaxConcurrentTasks = c.Orchestrator.MaxConcurrentTasks
	oc.TaskTimeout = c.Orchestrator.TaskTimeout
	oc.EnableRetry = c.Orchestrator.EnableRetry
	oc.MaxRetries = c.Orchestrator.MaxRetries
	oc.RetryDelay = c.Orchestrator.RetryDelay
	oc.EnableAuditLog = c.Orchestrator.EnableAuditLog
	return oc
}

// RouterConfig converts the router section.
func (c *Config) RouterConfig() router.Config {
	rc := router.DefaultConfig()
	rc.DefaultModel = c.Router.DefaultModel
	rc.FallbackModels = append([]string(nil), c.Router.FallbackModels...)
	rc.Timeout = c.Router.Timeout
	rc.MaxRetries = c.Router.MaxRetries
	rc.CostBudget = c.Router.CostBudget
	rc.RateLimit = router.RateLimit{Requests: c.Router.RateLimit.Requests, Window: c.Router.RateLimit.Window}
	rc.InitialBackoff = c.Router.InitialBackoff
	rc.MaxBackoff = c.Router.MaxBackoff
	rc.BatchSize = c.Router.BatchSize
	return rc
}

// MemoryConfig converts the memory section.
func (c *Config) MemoryConfig() memory.Config {
	mc := memory.DefaultConfig()
	mc.MaxTaskMemory = c.Memory.MaxTaskMemory
	mc.MaxRepoMemory = c.Memory.MaxRepoMemory
	mc.CacheTTL = c.Memory.CacheTTL
	mc.SweepInterval = c.Memory.SweepInterval
	mc.EnableVectorStore = c.Memory.EnableVectorStore
	vs := c.Memory.VectorStore
	mc.VectorStore = memory.VectorStoreConfig{
		Dimension:           vs.Dimension,
		SimilarityThreshold: vs.SimilarityThreshold,
		CacheLifetime:       vs.CacheLifetime,
		QdrantURL:           vs.QdrantURL,
		QdrantAPIKey:        vs.QdrantAPIKey,
		Collection:          vs.Collection,
	}
	return mc
}

// LoggerConfig converts the logging section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.Format = c.Logging.Format
	lc.AddSource = c.Logging.AddSource
	return lc
}

// TelemetryConfig converts the telemetry section.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	return telemetry.Config{
		Endpoint:       c.Telemetry.Endpoint,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: version,
		Insecure:       c.Telemetry.Insecure,
		MetricInterval: c.Telemetry.MetricInterval,
	}
}

// ModelConfigs converts the models list. Without explicit models the default
// model is described from the provider settings.
func (c *Config) ModelConfigs() []core.ModelConfig {
	if len(c.Models) == 0 {
		return []core.ModelConfig{{
			Name:              c.Router.DefaultModel,
			Provider:          c.Providers.Default,
			Capability:        core.ModelClosed,
			MaxContextTokens:  200000,
			SupportsStreaming: true,
		}}
	}
	out := make([]core.ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, m.ModelConfig())
	}
	return out
}

// AgentConfigs converts the agents list; without entries every built-in
// agent kind is configured on the default model.
func (c *Config) AgentConfigs() ([]core.AgentConfig, error) {
	if len(c.Agents) == 0 {
		return agent.DefaultConfigs(c.Router.DefaultModel), nil
	}
	out := make([]core.AgentConfig, 0, len(c.Agents))
	for _, a := range c.Agents {
		cfg, err := a.AgentConfig()
		if err != nil {
			return nil, err
		}
		if cfg.Model == "" {
			cfg.Model = c.Router.DefaultModel
		}
		out = append(out, cfg)
	}
	return out, nil
}

// ModelConfig converts the entry.
func (m ModelEntry) ModelConfig() core.ModelConfig {
	return core.ModelConfig{
		Name:              m.Name,
		Provider:          m.Provider,
		Capability:        core.ModelCapability(m.Capability),
		MaxContextTokens:  m.MaxContextTokens,
		SupportsStreaming: m.SupportsStreaming,
		CostPerToken:      m.CostPerToken,
	}
}

// AgentConfig converts the entry. Tools default to the kind's built-in
// permissions when none are listed.
func (a AgentEntry) AgentConfig() (core.AgentConfig, error) {
	kind, err := core.ParseAgentKind(a.Kind)
	if err != nil {
		return core.AgentConfig{}, err
	}
	tools := append([]string(nil), a.Tools...)
	if len(tools) == 0 {
		for _, d := range agent.DefaultConfigs("") {
			if d.Kind == kind {
				tools = d.Tools
			}
		}
	}
	return core.AgentConfig{
		ID:          a.ID,
		Kind:        kind,
		Model:       a.Model,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
		Tools:       tools,
	}, nil
}

// UserConfigDir returns the XDG config directory for the engine.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "elite")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "elite")
	}
	return filepath.Join(home, ".config", "elite")
}

// findProjectConfig searches the working directory and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		for _, name := range ProjectConfigNames {
			p := filepath.Join(cwd, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}
