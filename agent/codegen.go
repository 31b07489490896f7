package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// FileSpec names one file to generate.
type FileSpec struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// CodeRequest is the structured form of a code generation task.
type CodeRequest struct {
	Language     string     `json:"language"`
	Files        []FileSpec `json:"files"`
	Requirements []string   `json:"requirements,omitempty"`
}

func (r CodeRequest) complete() bool {
	if len(r.Files) == 0 {
		return false
	}
	for _, f := range r.Files {
		if f.Path == "" {
			return false
		}
	}
	return true
}

// CodeBundle is the code generator payload.
type CodeBundle struct {
	Language     string          `json:"language"`
	Files        []GeneratedFile `json:"files"`
	QualityScore float64         `json:"quality_score"`
	VetOutput    string          `json:"vet_output,omitempty"`
	Degraded     bool            `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (CodeBundle) PayloadKind() string { return "code_bundle" }

type codeGenerator struct{ noopHooks }

// NewCodeGenerator builds the code generation agent. Files are written
// through file_write and Go output is checked with go_vet when the agent is
// permitted to use those tools.
func NewCodeGenerator(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, codeGenerator{}), nil
}

func (codeGenerator) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	tc := x.Task.Context
	req, degraded := RequestStructured(ctx, x,
		`{"language": "go", "files": [{"path": "pkg/file.go", "purpose": "..."}], "requirements": ["..."]}`,
		func() CodeRequest { return fallbackCodeRequest(x.Task) })
	if req.Language == "" {
		req.Language = dominantLanguage(tc, "go")
	}

	bundle := CodeBundle{Language: req.Language, Degraded: degraded}
	var lastErr error
	for i, spec := range req.Files {
		gf, err := generateFile(ctx, x, req, spec)
		if err != nil {
			lastErr = err
			bundle.Files = append(bundle.Files, GeneratedFile{Path: spec.Path, Error: err.Error()})
			continue
		}
		bundle.Files = append(bundle.Files, gf)
		x.Progress(ctx, 20+60*(i+1)/len(req.Files), "generated "+spec.Path)
	}

	generated := 0
	var total float64
	for _, f := range bundle.Files {
		if f.Error == "" {
			generated++
			total += codeQuality(f.Content)
		}
	}
	if generated == 0 {
		return nil, fmt.Errorf("no file could be generated: %w", lastErr)
	}
	bundle.QualityScore = total / float64(generated)
	x.Score("quality", bundle.QualityScore)

	applyFiles(ctx, x, bundle.Files, core.ArtifactSource)

	if req.Language == "go" && x.CanUse("go_vet") && anyApplied(bundle.Files) {
		if res, err := x.ApplyTool(ctx, "go_vet", map[string]any{}); err == nil {
			bundle.VetOutput = strings.TrimSpace(res.Stdout + res.Stderr)
			if res.Success {
				x.Score("vet_passed", 1)
			} else {
				x.Score("vet_passed", 0)
			}
		}
	}
	return bundle, nil
}

func fallbackCodeRequest(task *core.Task) CodeRequest {
	lang := dominantLanguage(task.Context, "go")
	req := CodeRequest{Language: lang, Requirements: splitClauses(task.Description)}
	for _, f := range task.Context.Files {
		if f.Modified && !isTestPath(f.Path) {
			req.Files = append(req.Files, FileSpec{Path: f.Path, Purpose: task.Description})
		}
	}
	if len(req.Files) == 0 {
		req.Files = []FileSpec{{Path: defaultSourcePath(lang), Purpose: task.Description}}
	}
	return req
}

func generateFile(ctx context.Context, x *Execution, req CodeRequest, spec FileSpec) (GeneratedFile, error) {
	prompt := render(codePrompt, map[string]any{
		"language":     req.Language,
		"path":         spec.Path,
		"purpose":      spec.Purpose,
		"requirements": req.Requirements,
		"existing":     contentOf(x.Task.Context, spec.Path),
	})
	text, err := x.Generate(ctx, "You are an expert software engineer. Reply with the complete file only.", prompt)
	if err != nil {
		return GeneratedFile{}, err
	}
	return newGeneratedFile(spec.Path, util.StripCodeFence(text)+"\n"), nil
}

const codePrompt = `Write the {{.language}} file {{.path}}.
Purpose: {{.purpose}}
{{if .requirements}}Requirements:
{{bullets .requirements}}{{end}}{{if .existing}}Current content:
{{.existing}}
{{end}}`

// codeQuality scores a file body from 0 to 100 with cheap static signals.
func codeQuality(content string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}
	score := 100.0
	lines := strings.Split(content, "\n")
	long := 0
	for _, l := range lines {
		if len(l) > 120 {
			long++
		}
	}
	score -= clamp(float64(long)*2, 0, 20)
	if strings.Contains(content, "TODO") || strings.Contains(content, "FIXME") {
		score -= 10
	}
	if strings.Contains(content, "panic(") {
		score -= 5
	}
	if countLines(content) < 3 {
		score -= 20
	}
	return clamp(score, 0, 100)
}

// applyFiles writes generated files through file_write when permitted and
// records each one as an artifact.
func applyFiles(ctx context.Context, x *Execution, files []GeneratedFile, typ core.ArtifactType) {
	write := x.CanUse("file_write")
	for i := range files {
		f := &files[i]
		if f.Error != "" {
			continue
		}
		md := map[string]string{"language": f.Language, "lines": fmt.Sprint(f.Lines)}
		if write {
			res, err := x.ApplyTool(ctx, "file_write", map[string]any{"path": f.Path, "content": f.Content})
			switch {
			case err != nil:
				md["apply_error"] = err.Error()
			case !res.Success:
				md["apply_error"] = res.Error
			default:
				f.Applied = true
				md["applied"] = "file_write"
			}
		}
		x.AddArtifact(typ, f.Path, []byte(f.Content), md)
	}
}

func anyApplied(files []GeneratedFile) bool {
	for _, f := range files {
		if f.Applied {
			return true
		}
	}
	return false
}
