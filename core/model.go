package core

import "fmt"

// ModelCapability classifies a model as open-weight or closed.
type ModelCapability string

const (
	ModelOpen   ModelCapability = "open"
	ModelClosed ModelCapability = "closed"
)

// ModelConfig describes a model registered with the router. Immutable after
// registration.
type ModelConfig struct {
	Name              string          `json:"name" yaml:"name"`
	Provider          string          `json:"provider,omitempty" yaml:"provider,omitempty"`
	Capability        ModelCapability `json:"capability" yaml:"capability"`
	MaxContextTokens  int             `json:"max_context_tokens" yaml:"max_context_tokens"`
	SupportsStreaming bool            `json:"supports_streaming" yaml:"supports_streaming"`
	// CostPerToken is optional; zero means free or unknown.
	CostPerToken float64 `json:"cost_per_token,omitempty" yaml:"cost_per_token,omitempty"`
}

// Validate checks required fields.
func (m ModelConfig) Validate() error {
	var problems []string
	if m.Name == "" {
		problems = append(problems, "name is required")
	}
	if m.MaxContextTokens <= 0 {
		problems = append(problems, "max_context_tokens must be positive")
	}
	if m.CostPerToken < 0 {
		problems = append(problems, "cost_per_token must not be negative")
	}
	switch m.Capability {
	case ModelOpen, ModelClosed, "":
	default:
		problems = append(problems, fmt.Sprintf("capability %q must be open or closed", m.Capability))
	}
	if len(problems) > 0 {
		return NewValidationError("core.ModelConfig.Validate", "invalid model config", problems...)
	}
	return nil
}
