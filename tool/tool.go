package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// Kind selects the execution strategy of a tool.
type Kind string

const (
	KindBuiltin  Kind = "builtin"
	KindExternal Kind = "external"
	KindModel    Kind = "model"
)

// Category groups tools for display and permission defaults.
type Category string

const (
	CategoryFile     Category = "file"
	CategoryShell    Category = "shell"
	CategoryAnalysis Category = "analysis"
	CategorySecurity Category = "security"
	CategorySearch   Category = "search"
	CategoryCustom   Category = "custom"
)

// ParamType is the primitive JSON type of a parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Rules are optional value constraints. Min and Max bound numbers and the
// length of strings and arrays.
type Rules struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum    []any    `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Parameter declares one accepted argument.
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       *Rules    `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Config describes a registered tool. Immutable after registration.
type Config struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category      `json:"category" yaml:"category"`
	Kind        Kind          `json:"kind" yaml:"kind"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retryable   bool          `json:"retryable,omitempty" yaml:"retryable,omitempty"`
	Parameters  []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Command and Args drive external tools. Args are templates rendered
	// against the call arguments.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Prompt is the template sent to the model for model-backed tools.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// Validate checks the static configuration.
func (c Config) Validate() error {
	var problems []string
	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	switch c.Kind {
	case KindBuiltin:
	case KindExternal:
		if c.Command == "" {
			problems = append(problems, "external tools require a command")
		}
	case KindModel:
		if c.Prompt == "" {
			problems = append(problems, "model-backed tools require a prompt")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown kind %q", c.Kind))
	}
	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	seen := make(map[string]bool, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Name == "" {
			problems = append(problems, "parameter name is required")
			continue
		}
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("duplicate parameter %q", p.Name))
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		default:
			problems = append(problems, fmt.Sprintf("parameter %q has unknown type %q", p.Name, p.Type))
		}
	}
	if len(problems) > 0 {
		return core.NewValidationError("tool.Config.Validate", "invalid tool config", problems...)
	}
	return nil
}

// Schema renders the parameters as a JSON schema object, the shape models
// expect for function calling.
func (c Config) Schema() map[string]any {
	props := make(map[string]any, len(c.Parameters))
	var required []string
	for _, p := range c.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Rules != nil {
			if len(p.Rules.Enum) > 0 {
				prop["enum"] = p.Rules.Enum
			}
			if p.Rules.Pattern != "" {
				prop["pattern"] = p.Rules.Pattern
			}
			if p.Rules.Min != nil {
				prop["minimum"] = *p.Rules.Min
			}
			if p.Rules.Max != nil {
				prop["maximum"] = *p.Rules.Max
			}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Output is what an executor produces for one call.
type Output struct {
	Value    any
	Stdout   string
	Stderr   string
	ExitCode int
}

// Result is the structured outcome of ExecuteTool.
type Result struct {
	Tool      string         `json:"tool"`
	Success   bool           `json:"success"`
	Output    any            `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind core.ErrorKind `json:"error_kind,omitempty"`
	Stdout    string         `json:"stdout,omitempty"`
	Stderr    string         `json:"stderr,omitempty"`
	ExitCode  int            `json:"exit_code"`
	Duration  time.Duration  `json:"duration"`
	Attempts  int            `json:"attempts"`
}

// Executor runs calls for one tool. All three execution kinds share it.
type Executor interface {
	Execute(ctx context.Context, args map[string]any) (Output, error)
	Shutdown(ctx context.Context) error
}

// Completer produces text for a prompt. Model-backed tools use it; the router
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

func float(v float64) *float64 { return &v }
