package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
	"github.com/achintir-projects/elite-ai-agent/tool"
)

// SecurityRequest is the structured form of a security task.
type SecurityRequest struct {
	Paths []string `json:"paths"`
	// Deep adds a model-assisted vulnerability pass on top of pattern rules.
	Deep bool `json:"deep"`
}

func (r SecurityRequest) complete() bool { return len(r.Paths) > 0 }

// SecurityFinding is one vulnerability or leaked secret.
type SecurityFinding struct {
	Path        string   `json:"path"`
	Line        int      `json:"line,omitempty"`
	Rule        string   `json:"rule"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// SecurityReport is the security scanner payload.
type SecurityReport struct {
	Findings  []SecurityFinding `json:"findings"`
	Secrets   int               `json:"secrets"`
	RiskScore float64           `json:"risk_score"`
	Degraded  bool              `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (SecurityReport) PayloadKind() string { return "security_report" }

var vulnRules = []struct {
	rule     string
	severity Severity
	re       *regexp.Regexp
	desc     string
}{
	{"shell-injection", SeverityHigh, regexp.MustCompile(`exec\.Command\("(ba)?sh",\s*"-c"|os\.system\(|subprocess\.\w+\(.*shell=True`), "command built through a shell"},
	{"eval", SeverityHigh, regexp.MustCompile(`\beval\(`), "dynamic code evaluation"},
	{"weak-hash", SeverityMedium, regexp.MustCompile(`\b(md5|sha1)\.(New|Sum)|hashlib\.(md5|sha1)\(`), "weak hash algorithm"},
	{"tls-verify-disabled", SeverityHigh, regexp.MustCompile(`InsecureSkipVerify:\s*true|verify\s*=\s*False`), "TLS certificate verification disabled"},
	{"plain-http", SeverityLow, regexp.MustCompile(`"http://[^"]*"`), "plain HTTP endpoint"},
	{"sql-concat", SeverityHigh, regexp.MustCompile(`(?i)"(select|insert|update|delete)\b[^"]*"\s*\+`), "SQL built by string concatenation"},
}

// scanPatterns applies the pattern rules line by line.
func scanPatterns(p, content string) []SecurityFinding {
	var out []SecurityFinding
	for i, l := range strings.Split(content, "\n") {
		for _, r := range vulnRules {
			if r.re.MatchString(l) {
				out = append(out, SecurityFinding{Path: p, Line: i + 1, Rule: r.rule, Severity: r.severity, Description: r.desc})
			}
		}
	}
	return out
}

type securityScanner struct{ noopHooks }

// NewSecurityScanner builds the security agent. Secrets are found with the
// secret_scan tool when permitted and with the same rules in process
// otherwise.
func NewSecurityScanner(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, securityScanner{}), nil
}

func (securityScanner) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	req, degraded := RequestStructured(ctx, x, `{"paths": ["."], "deep": false}`, func() SecurityRequest {
		paths := fileList(x.Task.Context)
		if len(paths) == 0 {
			paths = []string{"."}
		}
		return SecurityRequest{Paths: paths}
	})

	report := SecurityReport{Degraded: degraded}
	for i, p := range req.Paths {
		content := contentOf(x.Task.Context, p)
		for _, s := range secretsIn(ctx, x, p, content) {
			report.Findings = append(report.Findings, SecurityFinding{
				Path: s.Path, Line: s.Line, Rule: s.Rule, Severity: SeverityCritical,
				Description: "hard-coded credential " + s.Snippet,
			})
			report.Secrets++
		}
		if content != "" {
			report.Findings = append(report.Findings, scanPatterns(p, content)...)
			if req.Deep {
				extra, err := modelVulns(ctx, x, p, content)
				if err != nil {
					x.Logger().Debug("agent.security.model_pass_skipped", "path", p, "error", err)
					report.Degraded = true
				}
				report.Findings = append(report.Findings, extra...)
			}
		}
		x.Progress(ctx, 10+80*(i+1)/len(req.Paths), "scanned "+p)
	}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		return report.Findings[i].Severity.Weight() > report.Findings[j].Severity.Weight()
	})

	risk := 0.0
	for _, f := range report.Findings {
		risk += f.Severity.Weight()
	}
	report.RiskScore = clamp(risk, 0, 100)
	x.Score("risk", report.RiskScore)
	x.Score("secrets", float64(report.Secrets))

	x.AddArtifact(core.ArtifactReport, "security.md", []byte(report.Markdown()), map[string]string{
		"findings": fmt.Sprint(len(report.Findings)),
	})
	return report, nil
}

func secretsIn(ctx context.Context, x *Execution, p, content string) []tool.SecretFinding {
	if !x.CanUse("secret_scan") {
		if content == "" {
			return nil
		}
		return tool.ScanSecrets(p, content)
	}
	args := map[string]any{"path": p}
	if content != "" {
		args = map[string]any{"content": content}
	}
	res, err := x.ApplyTool(ctx, "secret_scan", args)
	if err != nil || !res.Success {
		return nil
	}
	found, _ := res.Output.([]tool.SecretFinding)
	for i := range found {
		if found[i].Path == "" {
			found[i].Path = p
		}
	}
	return found
}

func modelVulns(ctx context.Context, x *Execution, p, content string) ([]SecurityFinding, error) {
	text, err := x.Generate(ctx, "You are an application security auditor.",
		fmt.Sprintf("List vulnerabilities in %s.\nReturn JSON: {\"findings\": [{\"line\": 1, \"rule\": \"...\", \"severity\": \"low|medium|high|critical\", \"description\": \"...\"}]}\n\n%s", p, content))
	if err != nil {
		return nil, err
	}
	var out struct {
		Findings []struct {
			Line        int    `json:"line"`
			Rule        string `json:"rule"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
		} `json:"findings"`
	}
	if err := util.DecodeJSON(text, &out); err != nil {
		return nil, core.NewDegradedParseError("agent.security", err)
	}
	findings := make([]SecurityFinding, 0, len(out.Findings))
	for _, f := range out.Findings {
		rule := f.Rule
		if rule == "" {
			rule = "model"
		}
		findings = append(findings, SecurityFinding{Path: p, Line: f.Line, Rule: rule, Severity: parseSeverity(f.Severity), Description: f.Description})
	}
	return findings, nil
}

// Markdown renders the report.
func (r SecurityReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Security scan\n\nRisk score: %.0f, secrets: %d\n\n", r.RiskScore, r.Secrets)
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "- [%s] %s %s:%d %s\n", f.Severity, f.Rule, f.Path, f.Line, f.Description)
	}
	return b.String()
}
