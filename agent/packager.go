package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// PackageRequest is the structured form of a packaging task.
type PackageRequest struct {
	Name      string   `json:"name"`
	Language  string   `json:"language"`
	Manifests []string `json:"manifests"`
}

func (r PackageRequest) complete() bool { return r.Name != "" && len(r.Manifests) > 0 }

// PackageBundle is the packager payload.
type PackageBundle struct {
	Name      string          `json:"name"`
	Language  string          `json:"language"`
	Manifests []GeneratedFile `json:"manifests"`
	Degraded  bool            `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (PackageBundle) PayloadKind() string { return "package_bundle" }

var defaultManifests = map[string][]string{
	"go":         {"Dockerfile", "Makefile", ".goreleaser.yaml"},
	"python":     {"Dockerfile", "pyproject.toml"},
	"javascript": {"Dockerfile", "package.json"},
	"typescript": {"Dockerfile", "package.json"},
	"rust":       {"Dockerfile", "Cargo.toml"},
}

type packager struct{ noopHooks }

// NewPackager builds the packaging agent.
func NewPackager(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, packager{}), nil
}

func (packager) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	lang := dominantLanguage(x.Task.Context, "go")
	req, degraded := RequestStructured(ctx, x, `{"name": "app", "language": "go", "manifests": ["Dockerfile"]}`, func() PackageRequest {
		return PackageRequest{Name: projectName(x.Task), Language: lang, Manifests: manifestsFor(lang)}
	})
	if req.Language == "" {
		req.Language = lang
	}

	bundle := PackageBundle{Name: req.Name, Language: req.Language, Degraded: degraded}
	for i, m := range req.Manifests {
		text, err := x.Generate(ctx, "You write production build and packaging manifests. Reply with the file only.",
			fmt.Sprintf("Project %q (%s).\nWrite %s.\nTask: %s", req.Name, req.Language, m, x.Task.Description))
		if err != nil {
			// A manifest the model cannot produce is replaced by a minimal template.
			x.Logger().Warn("agent.packager.template", "manifest", m, "error", err)
			text = manifestTemplate(m, req)
		}
		bundle.Manifests = append(bundle.Manifests, newGeneratedFile(m, util.StripCodeFence(text)+"\n"))
		x.Progress(ctx, 20+70*(i+1)/len(req.Manifests), "wrote "+m)
	}
	x.Score("manifests", float64(len(bundle.Manifests)))

	applyFiles(ctx, x, bundle.Manifests, core.ArtifactManifest)
	return bundle, nil
}

func manifestsFor(lang string) []string {
	if m, ok := defaultManifests[lang]; ok {
		return append([]string(nil), m...)
	}
	return []string{"Dockerfile"}
}

func projectName(task *core.Task) string {
	if task.Context.RepoID != "" {
		return task.Context.RepoID
	}
	if wd := task.Context.Environment.WorkingDir; wd != "" {
		return filepath.Base(wd)
	}
	return "app"
}

// manifestTemplate is the deterministic manifest used when generation fails.
func manifestTemplate(name string, req PackageRequest) string {
	switch strings.ToLower(filepath.Base(name)) {
	case "dockerfile":
		if req.Language == "go" {
			return fmt.Sprintf("FROM golang:1.24 AS build\nWORKDIR /src\nCOPY . .\nRUN CGO_ENABLED=0 go build -o /out/%[1]s .\n\n"+
				"FROM gcr.io/distroless/static\nCOPY --from=build /out/%[1]s /%[1]s\nENTRYPOINT [\"/%[1]s\"]", req.Name)
		}
		return "FROM alpine:3.20\nWORKDIR /app\nCOPY . .\n"
	case "makefile":
		return fmt.Sprintf(".PHONY: build test\n\nbuild:\n\tgo build -o bin/%s .\n\ntest:\n\tgo test ./...", req.Name)
	default:
		return fmt.Sprintf("# %s for %s", name, req.Name)
	}
}
