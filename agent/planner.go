package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// PlanRequest is the structured form of a planning task.
type PlanRequest struct {
	Goal        string   `json:"goal"`
	Constraints []string `json:"constraints,omitempty"`
	MaxSteps    int      `json:"max_steps,omitempty"`
}

func (r PlanRequest) complete() bool { return r.Goal != "" }

// PlanStep is one unit of a plan, shaped so it can be submitted as a task.
type PlanStep struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Kind        core.TaskKind `json:"kind"`
	DependsOn   []string      `json:"depends_on,omitempty"`
}

// Plan is the planner payload.
type Plan struct {
	Goal       string     `json:"goal"`
	Steps      []PlanStep `json:"steps"`
	Complexity string     `json:"complexity"`
	Degraded   bool       `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (Plan) PayloadKind() string { return "plan" }

type planner struct{ noopHooks }

// NewPlanner builds the planning agent.
func NewPlanner(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, planner{}), nil
}

func (planner) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	req, degraded := RequestStructured(ctx, x, `{"goal": "...", "constraints": ["..."], "max_steps": 5}`, func() PlanRequest {
		return PlanRequest{Goal: x.Task.Description, MaxSteps: 5}
	})
	if req.MaxSteps <= 0 {
		req.MaxSteps = 8
	}
	x.Progress(ctx, 30, "request structured")

	steps, err := modelPlan(ctx, x, req)
	if err != nil {
		x.Logger().Warn("agent.planner.heuristic", "task_id", x.Task.ID, "error", err)
		steps = heuristicPlan(req)
		degraded = true
	}
	if len(steps) > req.MaxSteps {
		steps = steps[:req.MaxSteps]
	}
	steps = normalizeSteps(steps)

	plan := Plan{Goal: req.Goal, Steps: steps, Complexity: complexityOf(len(steps)), Degraded: degraded}
	x.Score("steps", float64(len(steps)))
	x.Score("complexity", float64(len(steps))/float64(req.MaxSteps))

	body, _ := json.MarshalIndent(plan, "", "  ")
	x.AddArtifact(core.ArtifactPlan, "plan.json", body, map[string]string{"complexity": plan.Complexity})
	x.Progress(ctx, 100, fmt.Sprintf("planned %d steps", len(steps)))
	return plan, nil
}

type rawStep struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	DependsOn   []string `json:"depends_on"`
}

func modelPlan(ctx context.Context, x *Execution, req PlanRequest) ([]PlanStep, error) {
	prompt := fmt.Sprintf("Break this goal into at most %d ordered steps.\nGoal: %s\n", req.MaxSteps, req.Goal)
	if len(req.Constraints) > 0 {
		prompt += "Constraints:\n- " + strings.Join(req.Constraints, "\n- ") + "\n"
	}
	prompt += `Kinds: planning, research, code-generation, testing, packaging, review, security, documentation.
Return JSON: {"steps": [{"id": "step-1", "title": "...", "description": "...", "kind": "...", "depends_on": []}]}`

	text, err := x.Generate(ctx, "You are a software project planner.", prompt)
	if err != nil {
		return nil, err
	}
	var out struct {
		Steps []rawStep `json:"steps"`
	}
	if err := util.DecodeJSON(text, &out); err != nil {
		return nil, core.NewDegradedParseError("agent.planner", err)
	}
	if len(out.Steps) == 0 {
		return nil, core.NewDegradedParseError("agent.planner", fmt.Errorf("plan has no steps"))
	}
	steps := make([]PlanStep, 0, len(out.Steps))
	for _, r := range out.Steps {
		kind, err := core.ParseTaskKind(r.Kind)
		if err != nil {
			kind = inferTaskKind(r.Title + " " + r.Description)
		}
		steps = append(steps, PlanStep{ID: r.ID, Title: r.Title, Description: r.Description, Kind: kind, DependsOn: r.DependsOn})
	}
	return steps, nil
}

// heuristicPlan turns each clause of the goal into a sequential step.
func heuristicPlan(req PlanRequest) []PlanStep {
	clauses := splitClauses(req.Goal)
	if len(clauses) == 0 {
		clauses = []string{req.Goal}
	}
	steps := make([]PlanStep, 0, len(clauses)+1)
	for i, c := range clauses {
		s := PlanStep{Title: core.Summarize(c, 80), Description: c, Kind: inferTaskKind(c)}
		if i > 0 {
			s.DependsOn = []string{fmt.Sprintf("step-%d", i)}
		}
		steps = append(steps, s)
	}
	return steps
}

// normalizeSteps assigns missing ids and drops dependencies on unknown or
// later steps.
func normalizeSteps(steps []PlanStep) []PlanStep {
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		if steps[i].ID == "" || seen[steps[i].ID] {
			steps[i].ID = fmt.Sprintf("step-%d", i+1)
		}
		if steps[i].Title == "" {
			steps[i].Title = core.Summarize(steps[i].Description, 80)
		}
		deps := steps[i].DependsOn[:0:0]
		for _, d := range steps[i].DependsOn {
			if seen[d] {
				deps = append(deps, d)
			}
		}
		steps[i].DependsOn = deps
		seen[steps[i].ID] = true
	}
	return steps
}

func complexityOf(n int) string {
	switch {
	case n <= 3:
		return "low"
	case n <= 7:
		return "medium"
	default:
		return "high"
	}
}
