// Package eliteagent wires the orchestrator, model router, tool registry,
// memory manager and agent factory into one System. Most applications:
//  1. Build a System with New, from a loaded config.Config or defaults
//  2. Submit tasks (or Run them synchronously) and observe lifecycle events
//  3. Close the System to drain in-flight work
//
// Unset collaborators default to in-memory implementations and model
// backends built from the provider settings.
package eliteagent

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/achintir-projects/elite-ai-agent/agent"
	"github.com/achintir-projects/elite-ai-agent/artifact"
	"github.com/achintir-projects/elite-ai-agent/config"
	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/memory"
	"github.com/achintir-projects/elite-ai-agent/model"
	"github.com/achintir-projects/elite-ai-agent/model/anthropic"
	"github.com/achintir-projects/elite-ai-agent/model/openai"
	"github.com/achintir-projects/elite-ai-agent/orchestrator"
	"github.com/achintir-projects/elite-ai-agent/router"
	"github.com/achintir-projects/elite-ai-agent/store"
	"github.com/achintir-projects/elite-ai-agent/telemetry"
	"github.com/achintir-projects/elite-ai-agent/tool"
)

// Version is reported to telemetry as the service version.
const Version = "0.1.0"

// Options configures a System.
type Options struct {
	// Config supplies every setting not overridden below; nil uses defaults.
	Config *config.Config
	// Backend serves every model without a dedicated backend; nil builds one
	// from Config.Providers.
	Backend model.Model
	// Backends maps model names to dedicated backends.
	Backends map[string]model.Model
	// Artifacts keeps generated file bodies; nil uses store.artifacts_dir or
	// memory.
	Artifacts core.ArtifactStore
	Logger    logging.Logger
	// SkipAgents leaves agent binding to the caller.
	SkipAgents bool
}

// System is a fully wired engine.
type System struct {
	Orchestrator *orchestrator.Orchestrator
	Router       *router.Router
	Tools        *tool.Registry
	Memory       *memory.Manager
	Factory      *agent.Factory
	Artifacts    core.ArtifactStore

	cfg       *config.Config
	logger    logging.Logger
	db        *store.DB
	telemetry telemetry.Shutdown
}

// New builds a System. Configured agents are created through the factory and
// bound to the orchestrator unless SkipAgents is set.
func New(ctx context.Context, optFns ...func(o *Options)) (*System, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(cfg.LoggerConfig())
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s := &System{cfg: cfg, logger: logger, telemetry: shutdownTelemetry}

	var (
		taskStore core.Store[*core.Task]
		memOpts   = func(o *memory.Options) {}
	)
	if cfg.Store.Driver == "sqlite" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			_ = shutdownTelemetry(ctx)
			return nil, err
		}
		s.db = db
		taskStore = store.NewSQLite[*core.Task](db, "tasks")
		memOpts = func(o *memory.Options) {
			o.TaskStore = store.NewSQLite[*memory.TaskMemory](db, "task_memory")
			o.RepoStore = store.NewSQLite[*memory.RepoMemory](db, "repo_memory")
		}
	}

	backends := newBackendSet(cfg.Providers)
	defaultBackend := opts.Backend
	if defaultBackend == nil {
		defaultBackend = backends.get(cfg.Providers.Default)
	}
	s.Router = router.New(func(o *router.Options) {
		o.Config = cfg.RouterConfig()
		o.Backend = defaultBackend
		o.Logger = scoped(logger, "router")
	})
	for _, mc := range cfg.ModelConfigs() {
		if err := s.Router.RegisterModel(mc); err != nil {
			s.abort(ctx)
			return nil, err
		}
		if b, ok := opts.Backends[mc.Name]; ok {
			s.Router.RegisterBackend(mc.Name, b)
		} else if opts.Backend == nil && mc.Provider != "" && mc.Provider != cfg.Providers.Default {
			s.Router.RegisterBackend(mc.Name, backends.get(mc.Provider))
		}
	}

	s.Tools = tool.New(func(o *tool.Options) {
		o.WorkDir = cfg.Tools.WorkDir
		o.Env = cfg.Tools.Env
		o.Completer = s.Router
		o.Logger = scoped(logger, "tools")
	})

	s.Memory, err = memory.New(func(o *memory.Options) {
		o.Config = cfg.MemoryConfig()
		o.Logger = scoped(logger, "memory")
		memOpts(o)
	})
	if err != nil {
		s.abort(ctx)
		return nil, err
	}
	s.Memory.Start(context.WithoutCancel(ctx))

	s.Artifacts = opts.Artifacts
	if s.Artifacts == nil {
		s.Artifacts = artifact.NewInMemoryStore()
		if dir := cfg.Store.ArtifactsDir; dir != "" {
			ds, err := artifact.NewDirStore(dir)
			if err != nil {
				_ = s.Memory.Stop()
				s.abort(ctx)
				return nil, err
			}
			s.Artifacts = ds
		}
	}
	s.Factory = agent.NewFactory(agent.Deps{
		Models:    s.Router,
		Tools:     s.Tools,
		Artifacts: s.Artifacts,
		Logger:    scoped(logger, "agent"),
	})

	s.Orchestrator = orchestrator.New(func(o *orchestrator.Options) {
		o.Config = cfg.OrchestratorConfig()
		o.Store = taskStore
		o.Memory = s.Memory
		o.Factory = s.Factory
		o.Logger = logger
	})

	if !opts.SkipAgents {
		agents, err := cfg.AgentConfigs()
		if err != nil {
			s.abort(ctx)
			return nil, err
		}
		for _, ac := range agents {
			if _, err := s.Orchestrator.RegisterAgent(ctx, ac); err != nil {
				s.abort(ctx)
				return nil, fmt.Errorf("register agent %s: %w", ac.ID, err)
			}
		}
	}

	logger.Info("system.ready", "models", len(s.Router.Models()), "tools", len(s.Tools.GetToolConfigs()),
		"agents", len(s.Orchestrator.Agents()), "store", cfg.Store.Driver)
	return s, nil
}

// Config returns the configuration the system was built from.
func (s *System) Config() *config.Config { return s.cfg }

// Submit schedules a task and returns its id.
func (s *System) Submit(req orchestrator.SubmitRequest) (string, error) {
	return s.Orchestrator.Submit(req)
}

// Run submits a task and waits for its terminal status.
func (s *System) Run(ctx context.Context, req orchestrator.SubmitRequest) (*core.Task, error) {
	id, err := s.Orchestrator.Submit(req)
	if err != nil {
		return nil, err
	}
	return s.Orchestrator.Wait(ctx, id)
}

// WatchRepo builds repository memory for root and keeps it current.
func (s *System) WatchRepo(repoID, root string) (*memory.RepoWatcher, error) {
	return s.Memory.WatchRepo(repoID, root)
}

// Close drains the orchestrator and releases every resource.
func (s *System) Close(ctx context.Context) error {
	var errs []error
	if err := s.Orchestrator.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("orchestrator: %w", err))
	}
	if err := s.Tools.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tools: %w", err))
	}
	if err := s.Memory.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	s.abort(ctx)
	return errors.Join(errs...)
}

// abort releases the store and telemetry.
func (s *System) abort(ctx context.Context) {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("system.store.close_failed", "error", err)
		}
		s.db = nil
	}
	if s.telemetry != nil {
		if err := s.telemetry(ctx); err != nil {
			s.logger.Warn("system.telemetry.shutdown_failed", "error", err)
		}
		s.telemetry = nil
	}
}

func scoped(l logging.Logger, component string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent(component)
	}
	return l
}

// backendSet builds provider backends on first use.
type backendSet struct {
	cfg   config.ProvidersConfig
	built map[string]model.Model
}

func newBackendSet(cfg config.ProvidersConfig) *backendSet {
	return &backendSet{cfg: cfg, built: map[string]model.Model{}}
}

func (b *backendSet) get(provider string) model.Model {
	if m, ok := b.built[provider]; ok {
		return m
	}
	var m model.Model
	switch provider {
	case "openai":
		oc := b.cfg.OpenAI
		m = openai.NewModel(func(o *openai.Options) {
			if oc.Model != "" {
				o.Model = oc.Model
			}
			o.APIKey = oc.APIKey
			o.BaseURL = oc.BaseURL
		})
	default:
		ac := b.cfg.Anthropic
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if ac.Model != "" {
				o.Model = anthropicsdk.Model(ac.Model)
			}
			o.APIKey = ac.APIKey
			o.UseBedrock = ac.UseBedrock
			o.AWSRegion = ac.AWSRegion
			o.AWSProfile = ac.AWSProfile
		})
	}
	b.built[provider] = m
	return m
}
