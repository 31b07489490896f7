package core

import (
	"context"
	"fmt"
	"strings"
)

// AgentKind enumerates the eight built-in agent strategies.
type AgentKind uint8

const (
	AgentKindUnknown AgentKind = iota
	AgentKindPlanner
	AgentKindResearcher
	AgentKindCodeGenerator
	AgentKindTester
	AgentKindPackager
	AgentKindReviewer
	AgentKindSecurityScanner
	AgentKindDocumenter

	numAgentKinds
)

var agentKindNames = [...]string{
	AgentKindUnknown:         "unknown",
	AgentKindPlanner:         "planner",
	AgentKindResearcher:      "researcher",
	AgentKindCodeGenerator:   "code-generator",
	AgentKindTester:          "tester",
	AgentKindPackager:        "packager",
	AgentKindReviewer:        "reviewer",
	AgentKindSecurityScanner: "security-scanner",
	AgentKindDocumenter:      "documenter",
}

// agentForTask is the total kind→agent table. Indexed keys keep it aligned
// with TaskKind; the length checks below fail compilation when a TaskKind is
// added without an agent.
var agentForTask = [...]AgentKind{
	TaskKindUnknown:        AgentKindUnknown,
	TaskKindPlanning:       AgentKindPlanner,
	TaskKindResearch:       AgentKindResearcher,
	TaskKindCodeGeneration: AgentKindCodeGenerator,
	TaskKindTesting:        AgentKindTester,
	TaskKindPackaging:      AgentKindPackager,
	TaskKindReview:         AgentKindReviewer,
	TaskKindSecurity:       AgentKindSecurityScanner,
	TaskKindDocumentation:  AgentKindDocumenter,
}

var (
	_ [len(agentForTask) - int(numTaskKinds)]struct{}
	_ [int(numTaskKinds) - len(agentForTask)]struct{}
	_ [len(agentKindNames) - int(numAgentKinds)]struct{}
	_ [int(numAgentKinds) - len(agentKindNames)]struct{}
)

// AgentKindFor returns the agent kind responsible for a task kind.
func AgentKindFor(k TaskKind) AgentKind {
	if int(k) < len(agentForTask) {
		return agentForTask[k]
	}
	return AgentKindUnknown
}

func (k AgentKind) String() string {
	if int(k) < len(agentKindNames) {
		return agentKindNames[k]
	}
	return fmt.Sprintf("AgentKind(%d)", uint8(k))
}

// Valid reports whether k is one of the eight built-in kinds.
func (k AgentKind) Valid() bool {
	return k > AgentKindUnknown && k < numAgentKinds
}

// MarshalText implements encoding.TextMarshaler.
func (k AgentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The zero kind round
// trips as "unknown" (or empty); rejecting it is left to validation.
func (k *AgentKind) UnmarshalText(b []byte) error {
	if isUnknownName(string(b)) {
		*k = AgentKindUnknown
		return nil
	}
	parsed, err := ParseAgentKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseAgentKind resolves a wire name such as "code-generator".
func ParseAgentKind(s string) (AgentKind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, name := range agentKindNames {
		if AgentKind(i) != AgentKindUnknown && name == norm {
			return AgentKind(i), nil
		}
	}
	return AgentKindUnknown, NewConfigurationError("core.ParseAgentKind", fmt.Sprintf("unknown agent kind %q", s))
}

// AgentKinds returns the eight built-in kinds in declaration order.
func AgentKinds() []AgentKind {
	kinds := make([]AgentKind, 0, numAgentKinds-1)
	for k := AgentKindPlanner; k < numAgentKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// AgentConfig declares an agent at registration time. It is not mutated
// during execution.
type AgentConfig struct {
	ID          string    `json:"id" yaml:"id"`
	Kind        AgentKind `json:"kind" yaml:"kind"`
	Model       string    `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Tools       []string  `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Validate checks required fields.
func (c AgentConfig) Validate() error {
	var problems []string
	if c.ID == "" {
		problems = append(problems, "id is required")
	}
	if !c.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("kind %q is not a known agent kind", c.Kind))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, "temperature must be within [0, 2]")
	}
	if c.MaxTokens < 0 {
		problems = append(problems, "max_tokens must not be negative")
	}
	if len(problems) > 0 {
		return NewValidationError("core.AgentConfig.Validate", "invalid agent config", problems...)
	}
	return nil
}

// Allows reports whether the agent may call the named tool.
func (c AgentConfig) Allows(tool string) bool {
	for _, t := range c.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// Agent is a stateful worker with an initialize / execute / shutdown
// lifecycle. Execute must fail with ErrAgentNotInitialized before Initialize
// and with ErrAgentShutDown after Shutdown.
type Agent interface {
	ID() string
	Kind() AgentKind
	Config() AgentConfig
	Initialize(ctx context.Context) error
	Execute(ctx context.Context, task *Task) (*TaskResult, error)
	Shutdown(ctx context.Context) error
}
