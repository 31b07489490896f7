package core

import (
	"encoding/json"
	"time"
)

// Payload is the tagged output body of a task. Every agent produces its own
// concrete payload type; PayloadKind names the variant.
type Payload interface {
	PayloadKind() string
}

// RawPayload holds a payload decoded from storage whose concrete type is not
// known to the decoder.
type RawPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// PayloadKind implements Payload.
func (r RawPayload) PayloadKind() string { return r.Kind }

// Decode unmarshals the raw body into v.
func (r RawPayload) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// ArtifactType classifies an artifact produced by an agent.
type ArtifactType string

const (
	ArtifactSource        ArtifactType = "source"
	ArtifactTest          ArtifactType = "test"
	ArtifactManifest      ArtifactType = "manifest"
	ArtifactReport        ArtifactType = "report"
	ArtifactDocumentation ArtifactType = "documentation"
	ArtifactPlan          ArtifactType = "plan"
)

// Artifact is a typed path plus metadata. The body, when kept, lives in an
// ArtifactStore keyed by task id and path.
type Artifact struct {
	Type     ArtifactType      `json:"type"`
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ExecutionMetrics summarizes the cost of producing a result.
type ExecutionMetrics struct {
	Duration   time.Duration      `json:"duration"`
	TokensUsed int                `json:"tokens_used"`
	ModelCalls int                `json:"model_calls"`
	ToolCalls  int                `json:"tool_calls"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// AuditEntry records one (agent, action, input, output) step.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	Success   bool      `json:"success"`
}

// NewAuditEntry builds an entry stamped with a fresh id and the current time.
// Input and output are truncated summaries.
func NewAuditEntry(agentID, action, input, output string, success bool) AuditEntry {
	return AuditEntry{
		ID:        NewID(),
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Action:    action,
		Input:     Summarize(input, 200),
		Output:    Summarize(output, 200),
		Success:   success,
	}
}

// Summarize truncates s to at most n runes, marking the cut.
func Summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// TaskResult is produced exactly once per completed or failed task.
type TaskResult struct {
	Success   bool             `json:"success"`
	Output    Payload          `json:"-"`
	Errors    []string         `json:"errors,omitempty"`
	Artifacts []Artifact       `json:"artifacts,omitempty"`
	Metrics   ExecutionMetrics `json:"metrics"`
	AuditLog  []AuditEntry     `json:"audit_log,omitempty"`
}

type taskResultJSON TaskResult

type taskResultEnvelope struct {
	*taskResultJSON
	Output *RawPayload `json:"output,omitempty"`
}

// MarshalJSON encodes Output as a {kind, data} envelope.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	env := taskResultEnvelope{taskResultJSON: (*taskResultJSON)(&r)}
	if raw, ok := r.Output.(RawPayload); ok {
		env.Output = &raw
	} else if r.Output != nil {
		data, err := json.Marshal(r.Output)
		if err != nil {
			return nil, err
		}
		env.Output = &RawPayload{Kind: r.Output.PayloadKind(), Data: data}
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes Output into a RawPayload.
func (r *TaskResult) UnmarshalJSON(b []byte) error {
	env := taskResultEnvelope{taskResultJSON: (*taskResultJSON)(r)}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if env.Output != nil {
		r.Output = *env.Output
	}
	return nil
}

// Clone copies slices and maps; the payload itself is shared and must be
// treated as immutable once the result is produced.
func (r *TaskResult) Clone() *TaskResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Errors = append([]string(nil), r.Errors...)
	cp.AuditLog = append([]AuditEntry(nil), r.AuditLog...)
	cp.Artifacts = make([]Artifact, len(r.Artifacts))
	for i, a := range r.Artifacts {
		cp.Artifacts[i] = a
		if a.Metadata != nil {
			cp.Artifacts[i].Metadata = make(map[string]string, len(a.Metadata))
			for k, v := range a.Metadata {
				cp.Artifacts[i].Metadata[k] = v
			}
		}
	}
	if r.Metrics.Scores != nil {
		cp.Metrics.Scores = make(map[string]float64, len(r.Metrics.Scores))
		for k, v := range r.Metrics.Scores {
			cp.Metrics.Scores[k] = v
		}
	}
	return &cp
}

// NewTaskResult returns a result with zeroed metrics, the starting point every
// agent execution fills in.
func NewTaskResult() *TaskResult {
	return &TaskResult{Metrics: ExecutionMetrics{Scores: map[string]float64{}}}
}
