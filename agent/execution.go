package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/model"
	"github.com/achintir-projects/elite-ai-agent/router"
	"github.com/achintir-projects/elite-ai-agent/tool"
)

// Execution is the per-task state handed to Hooks.Run. Its helpers record
// metrics, audit entries and artifacts on the task result.
type Execution struct {
	Task *core.Task

	agent  *BaseAgent
	budget *core.CallBudget

	mu     sync.Mutex
	result *core.TaskResult
}

func newExecution(b *BaseAgent, task *core.Task) *Execution {
	return &Execution{
		Task:   task,
		agent:  b,
		budget: core.NewCallBudget(b.deps.MaxModelCalls),
		result: core.NewTaskResult(),
	}
}

// Config returns the executing agent's config.
func (x *Execution) Config() core.AgentConfig { return x.agent.cfg }

// Logger returns the agent logger.
func (x *Execution) Logger() logging.Logger { return x.agent.logger }

// Audit appends an audit entry to the result.
func (x *Execution) Audit(action, input, output string, success bool) {
	e := core.NewAuditEntry(x.agent.cfg.ID, action, input, output, success)
	x.mu.Lock()
	x.result.AuditLog = append(x.result.AuditLog, e)
	x.mu.Unlock()
}

// Score records a named quality metric.
func (x *Execution) Score(name string, v float64) {
	x.mu.Lock()
	x.result.Metrics.Scores[name] = v
	x.mu.Unlock()
}

// Progress forwards a progress report for the task.
func (x *Execution) Progress(ctx context.Context, percent int, message string) {
	core.ReportProgress(ctx, percent, message)
}

// AddArtifact records an artifact and, when an artifact store is configured,
// keeps its body.
func (x *Execution) AddArtifact(typ core.ArtifactType, path string, body []byte, metadata map[string]string) {
	if store := x.agent.deps.Artifacts; store != nil && body != nil {
		if err := store.Save(x.Task.ID, path, body); err != nil {
			x.agent.logger.Warn("agent.artifact.save_failed", "task_id", x.Task.ID, "path", path, "error", err)
		}
	}
	x.mu.Lock()
	x.result.Artifacts = append(x.result.Artifacts, core.Artifact{Type: typ, Path: path, Metadata: metadata})
	x.mu.Unlock()
}

// Generate sends one prompt to the model using the agent's model settings.
func (x *Execution) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	const op = "agent.Generate"
	models := x.agent.deps.Models
	if models == nil {
		return "", core.NewConfigurationError(op, "no model client configured")
	}
	if err := x.budget.Increment(); err != nil {
		return "", err
	}

	cfg := x.agent.cfg
	req := router.Request{
		Messages:     []model.Message{{Role: model.RoleUser, Content: prompt}},
		Instructions: instructions,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		req.Temperature = &t
	}

	resp, err := models.GenerateResponse(ctx, req)

	x.mu.Lock()
	x.result.Metrics.ModelCalls++
	if resp != nil {
		x.result.Metrics.TokensUsed += resp.Usage.TotalTokens
	}
	x.mu.Unlock()

	if err != nil {
		x.Audit("model_call", prompt, err.Error(), false)
		return "", err
	}
	x.Audit("model_call", prompt, resp.Content, true)
	return resp.Content, nil
}

// checkable requests report whether a parsed value is usable.
type checkable interface {
	complete() bool
}

const structuredInstructions = "You convert software tasks into structured requests. " +
	"Respond with a single JSON object and nothing else."

// RequestStructured asks the model to turn the task description into a T by
// prompting for JSON shaped like example. When the model fails, the reply does
// not parse, or the parsed value is incomplete, fallback supplies a degraded
// request instead. The second return reports whether the fallback was used.
func RequestStructured[T any](ctx context.Context, x *Execution, example string, fallback func() T) (T, bool) {
	prompt := fmt.Sprintf("Task (%s):\n%s\n\nReturn JSON shaped like:\n%s", x.Task.Kind, x.Task.Description, example)
	if files := fileList(x.Task.Context); len(files) > 0 {
		prompt += "\n\nFiles in context:\n" + strings.Join(files, "\n")
	}

	text, err := x.Generate(ctx, structuredInstructions, prompt)
	if err == nil {
		var v T
		if err = util.DecodeJSON(text, &v); err == nil {
			if c, ok := any(&v).(checkable); !ok || c.complete() {
				x.Audit("structured_request", x.Task.Description, "parsed", true)
				return v, false
			}
			err = fmt.Errorf("structured request is missing required fields")
		}
	}

	perr := core.NewDegradedParseError("agent.RequestStructured", err)
	x.agent.logger.Warn("agent.structured.fallback", "agent_id", x.agent.cfg.ID, "task_id", x.Task.ID, "error", perr)
	x.Audit("structured_request", x.Task.Description, "fallback: "+perr.Error(), false)
	x.Score("degraded_parse", 1)
	return fallback(), true
}

// ApplyTool runs a tool the agent is permitted to call. Execution failures
// come back in the result; the error is reserved for refused or invalid calls.
func (x *Execution) ApplyTool(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
	const op = "agent.ApplyTool"
	input := fmt.Sprintf("%s %v", name, args)
	if !x.agent.cfg.Allows(name) {
		err := core.NewValidationError(op, fmt.Sprintf("agent %s may not call tool %s", x.agent.cfg.ID, name))
		x.Audit("tool:"+name, input, err.Error(), false)
		return nil, err
	}
	tools := x.agent.deps.Tools
	if tools == nil {
		return nil, core.NewConfigurationError(op, "no tool runner configured")
	}

	res, err := tools.ExecuteTool(ctx, name, args)

	x.mu.Lock()
	x.result.Metrics.ToolCalls++
	x.mu.Unlock()

	switch {
	case err != nil:
		x.Audit("tool:"+name, input, err.Error(), false)
		return nil, err
	case !res.Success:
		x.Audit("tool:"+name, input, res.Error, false)
	default:
		x.Audit("tool:"+name, input, fmt.Sprint(res.Output), true)
	}
	return res, nil
}

// CanUse reports whether the agent is permitted to call the tool and a tool
// runner is available.
func (x *Execution) CanUse(name string) bool {
	return x.agent.deps.Tools != nil && x.agent.cfg.Allows(name)
}

// fileList returns the sorted context file paths.
func fileList(tc core.TaskContext) []string {
	out := make([]string, 0, len(tc.Files))
	for _, f := range tc.Files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}
