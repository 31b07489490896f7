package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// ResearchRequest is the structured form of a research task.
type ResearchRequest struct {
	Topic     string   `json:"topic"`
	Questions []string `json:"questions"`
}

func (r ResearchRequest) complete() bool { return r.Topic != "" && len(r.Questions) > 0 }

// Finding answers one research question.
type Finding struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ResearchReport is the researcher payload.
type ResearchReport struct {
	Topic    string    `json:"topic"`
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary"`
	Coverage float64   `json:"coverage"`
	Degraded bool      `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (ResearchReport) PayloadKind() string { return "research_report" }

const webSearchTool = "web_search"

type researcher struct{ noopHooks }

// NewResearcher builds the research agent. It answers questions through the
// web_search tool when permitted and through the model otherwise.
func NewResearcher(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, researcher{}), nil
}

func (researcher) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	req, degraded := RequestStructured(ctx, x, `{"topic": "...", "questions": ["..."]}`, func() ResearchRequest {
		qs := splitClauses(x.Task.Description)
		if len(qs) == 0 {
			qs = []string{x.Task.Description}
		}
		return ResearchRequest{Topic: firstLine(x.Task.Description, 120), Questions: qs}
	})

	report := ResearchReport{Topic: req.Topic, Degraded: degraded}
	var lastErr error
	answered := 0
	for i, q := range req.Questions {
		f := Finding{Question: q}
		answer, source, err := answer(ctx, x, req.Topic, q)
		if err != nil {
			f.Error = err.Error()
			lastErr = err
		} else {
			f.Answer, f.Source = answer, source
			answered++
		}
		report.Findings = append(report.Findings, f)
		x.Progress(ctx, 10+80*(i+1)/len(req.Questions), fmt.Sprintf("answered %d/%d", answered, len(req.Questions)))
	}
	if answered == 0 && lastErr != nil {
		return nil, fmt.Errorf("no research question could be answered: %w", lastErr)
	}

	report.Coverage = float64(answered) / float64(len(req.Questions))
	report.Summary = summarize(report.Findings)
	x.Score("coverage", report.Coverage)

	x.AddArtifact(core.ArtifactReport, "research.md", []byte(report.Markdown()), map[string]string{
		"questions": fmt.Sprint(len(req.Questions)),
	})
	return report, nil
}

func answer(ctx context.Context, x *Execution, topic, question string) (string, string, error) {
	if x.CanUse(webSearchTool) {
		res, err := x.ApplyTool(ctx, webSearchTool, map[string]any{"query": question})
		if err == nil && res.Success {
			return fmt.Sprint(res.Output), webSearchTool, nil
		}
	}
	text, err := x.Generate(ctx, "You are a precise technical researcher.",
		fmt.Sprintf("Topic: %s\nAnswer concisely: %s", topic, question))
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(text), "model", nil
}

// summarize joins the first line of every answer.
func summarize(findings []Finding) string {
	var parts []string
	for _, f := range findings {
		if l := firstLine(f.Answer, 200); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// Markdown renders the report.
func (r ResearchReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research: %s\n\n", r.Topic)
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "## %s\n\n", f.Question)
		if f.Error != "" {
			fmt.Fprintf(&b, "_unanswered: %s_\n\n", f.Error)
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", f.Answer)
	}
	return b.String()
}
