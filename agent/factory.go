package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// Constructor builds an agent of one kind.
type Constructor func(cfg core.AgentConfig, deps Deps) (core.Agent, error)

// Factory maps agent kinds to constructors sharing one set of Deps.
type Factory struct {
	deps Deps

	mu    sync.RWMutex
	ctors map[core.AgentKind]Constructor
}

// NewFactory returns a factory with the eight built-in kinds registered.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps.withDefaults(), ctors: map[core.AgentKind]Constructor{
		core.AgentKindPlanner:         NewPlanner,
		core.AgentKindResearcher:      NewResearcher,
		core.AgentKindCodeGenerator:   NewCodeGenerator,
		core.AgentKindTester:          NewTester,
		core.AgentKindPackager:        NewPackager,
		core.AgentKindReviewer:        NewReviewer,
		core.AgentKindSecurityScanner: NewSecurityScanner,
		core.AgentKindDocumenter:      NewDocumenter,
	}}
}

// Register replaces the constructor for one of the built-in kinds. The kind
// set is closed: tasks only route to built-in kinds, so other kinds are
// rejected.
func (f *Factory) Register(kind core.AgentKind, ctor Constructor) error {
	const op = "agent.Factory.Register"
	if !kind.Valid() {
		return core.NewConfigurationError(op, fmt.Sprintf("unknown agent kind %q", kind))
	}
	if ctor == nil {
		return core.NewConfigurationError(op, fmt.Sprintf("nil constructor for agent kind %q", kind))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[kind] = ctor
	return nil
}

// Create validates cfg and builds an uninitialized agent.
func (f *Factory) Create(cfg core.AgentConfig) (core.Agent, error) {
	if err := cfg.Validate(); err != nil {
		if !cfg.Kind.Valid() {
			return nil, core.NewConfigurationError("agent.Factory.Create", fmt.Sprintf("unknown agent kind %q", cfg.Kind))
		}
		return nil, err
	}
	f.mu.RLock()
	ctor, ok := f.ctors[cfg.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, core.NewConfigurationError("agent.Factory.Create", fmt.Sprintf("no constructor for agent kind %q", cfg.Kind))
	}
	return ctor(cfg, f.deps)
}

// Kinds lists the registered kinds in declaration order.
func (f *Factory) Kinds() []core.AgentKind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]core.AgentKind, 0, len(f.ctors))
	for k := range f.ctors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var defaultTools = map[core.AgentKind][]string{
	core.AgentKindPlanner:         {"list_files"},
	core.AgentKindResearcher:      {"web_search", "file_read"},
	core.AgentKindCodeGenerator:   {"file_read", "file_write", "go_vet"},
	core.AgentKindTester:          {"file_read", "file_write", "shell_exec"},
	core.AgentKindPackager:        {"file_write", "list_files"},
	core.AgentKindReviewer:        {"file_read", "go_vet"},
	core.AgentKindSecurityScanner: {"secret_scan", "file_read"},
	core.AgentKindDocumenter:      {"file_read", "file_write"},
}

var defaultTemperature = map[core.AgentKind]float64{
	core.AgentKindPlanner:       0.3,
	core.AgentKindResearcher:    0.5,
	core.AgentKindCodeGenerator: 0.2,
	core.AgentKindTester:        0.2,
	core.AgentKindReviewer:      0.1,
	core.AgentKindDocumenter:    0.6,
}

// DefaultConfigs returns one config per built-in kind, ids equal to the kind
// name, with conservative tool permissions.
func DefaultConfigs(model string) []core.AgentConfig {
	kinds := core.AgentKinds()
	out := make([]core.AgentConfig, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, core.AgentConfig{
			ID:          k.String(),
			Kind:        k,
			Model:       model,
			Temperature: defaultTemperature[k],
			MaxTokens:   4096,
			Tools:       append([]string(nil), defaultTools[k]...),
		})
	}
	return out
}
