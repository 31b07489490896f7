package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// ReviewRequest is the structured form of a review task.
type ReviewRequest struct {
	Files []string `json:"files"`
	Focus []string `json:"focus,omitempty"`
}

func (r ReviewRequest) complete() bool { return len(r.Files) > 0 }

// ReviewFinding is one review comment.
type ReviewFinding struct {
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ReviewReport is the reviewer payload.
type ReviewReport struct {
	Findings []ReviewFinding `json:"findings"`
	Score    float64         `json:"score"`
	Files    int             `json:"files"`
	Degraded bool            `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (ReviewReport) PayloadKind() string { return "review_report" }

type reviewer struct{ noopHooks }

// NewReviewer builds the review agent.
func NewReviewer(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, reviewer{}), nil
}

func (reviewer) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	req, degraded := RequestStructured(ctx, x, `{"files": ["pkg/file.go"], "focus": ["correctness"]}`, func() ReviewRequest {
		return ReviewRequest{Files: fileList(x.Task.Context), Focus: []string{"correctness", "readability"}}
	})
	if len(req.Files) == 0 {
		return nil, core.NewValidationError("agent.reviewer", "no files to review")
	}

	report := ReviewReport{Files: len(req.Files), Degraded: degraded}
	for i, p := range req.Files {
		content := readContent(ctx, x, p)
		findings, err := modelReview(ctx, x, p, content, req.Focus)
		if err != nil {
			x.Logger().Debug("agent.reviewer.heuristic", "path", p, "error", err)
			findings = lintFindings(p, content)
			report.Degraded = true
		}
		report.Findings = append(report.Findings, findings...)
		x.Progress(ctx, 10+80*(i+1)/len(req.Files), "reviewed "+p)
	}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		return report.Findings[i].Severity.Weight() > report.Findings[j].Severity.Weight()
	})

	penalty := 0.0
	for _, f := range report.Findings {
		penalty += f.Severity.Weight()
	}
	report.Score = clamp(100-penalty, 0, 100)
	x.Score("review", report.Score)
	x.Score("findings", float64(len(report.Findings)))

	x.AddArtifact(core.ArtifactReport, "review.md", []byte(report.Markdown()), nil)
	return report, nil
}

// readContent prefers the context snapshot and falls back to file_read.
func readContent(ctx context.Context, x *Execution, p string) string {
	if c := contentOf(x.Task.Context, p); c != "" {
		return c
	}
	if !x.CanUse("file_read") {
		return ""
	}
	res, err := x.ApplyTool(ctx, "file_read", map[string]any{"path": p})
	if err != nil || !res.Success {
		return ""
	}
	s, _ := res.Output.(string)
	return s
}

func modelReview(ctx context.Context, x *Execution, p, content string, focus []string) ([]ReviewFinding, error) {
	if content == "" {
		return nil, fmt.Errorf("no content for %s", p)
	}
	text, err := x.Generate(ctx, "You are a meticulous code reviewer.",
		fmt.Sprintf("Review %s focusing on %s.\nReturn JSON: {\"findings\": [{\"line\": 1, \"severity\": \"low|medium|high|critical\", \"message\": \"...\"}]}\n\n%s",
			p, strings.Join(focus, ", "), content))
	if err != nil {
		return nil, err
	}
	var out struct {
		Findings []struct {
			Line     int    `json:"line"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"findings"`
	}
	if err := util.DecodeJSON(text, &out); err != nil {
		return nil, core.NewDegradedParseError("agent.reviewer", err)
	}
	findings := make([]ReviewFinding, 0, len(out.Findings))
	for _, f := range out.Findings {
		if f.Message == "" {
			continue
		}
		findings = append(findings, ReviewFinding{Path: p, Line: f.Line, Severity: parseSeverity(f.Severity), Message: f.Message})
	}
	return findings, nil
}

// lintFindings is the deterministic review used when the model is unusable.
func lintFindings(p, content string) []ReviewFinding {
	var out []ReviewFinding
	for i, l := range strings.Split(content, "\n") {
		n := i + 1
		switch {
		case len(l) > 120:
			out = append(out, ReviewFinding{Path: p, Line: n, Severity: SeverityLow, Message: "line exceeds 120 characters"})
		case strings.Contains(l, "TODO") || strings.Contains(l, "FIXME"):
			out = append(out, ReviewFinding{Path: p, Line: n, Severity: SeverityLow, Message: "unresolved TODO"})
		case strings.Contains(l, "panic("):
			out = append(out, ReviewFinding{Path: p, Line: n, Severity: SeverityMedium, Message: "panic in library code"})
		case strings.HasSuffix(l, " ") || strings.HasSuffix(l, "\t"):
			out = append(out, ReviewFinding{Path: p, Line: n, Severity: SeverityLow, Message: "trailing whitespace"})
		}
	}
	return out
}

// Markdown renders the report.
func (r ReviewReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Review\n\nScore: %.0f/100 across %d files\n\n", r.Score, r.Files)
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "- [%s] %s:%d %s\n", f.Severity, f.Path, f.Line, f.Message)
	}
	return b.String()
}
