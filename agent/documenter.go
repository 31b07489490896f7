package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// DocRequest is the structured form of a documentation task.
type DocRequest struct {
	Title    string   `json:"title"`
	Audience string   `json:"audience,omitempty"`
	Sections []string `json:"sections"`
	Output   string   `json:"output,omitempty"`
}

func (r DocRequest) complete() bool { return r.Title != "" && len(r.Sections) > 0 }

// DocSection is one written section.
type DocSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Documentation is the documenter payload.
type Documentation struct {
	Title        string       `json:"title"`
	Path         string       `json:"path"`
	Sections     []DocSection `json:"sections"`
	Markdown     string       `json:"markdown"`
	Completeness float64      `json:"completeness"`
	Degraded     bool         `json:"degraded,omitempty"`
}

// PayloadKind implements core.Payload.
func (Documentation) PayloadKind() string { return "documentation" }

var defaultSections = []string{"Overview", "Installation", "Usage", "Configuration"}

type documenter struct{ noopHooks }

// NewDocumenter builds the documentation agent.
func NewDocumenter(cfg core.AgentConfig, deps Deps) (core.Agent, error) {
	return NewBaseAgent(cfg, deps, documenter{}), nil
}

func (documenter) Run(ctx context.Context, x *Execution) (core.Payload, error) {
	req, degraded := RequestStructured(ctx, x, `{"title": "...", "audience": "developers", "sections": ["Overview"], "output": "README.md"}`, func() DocRequest {
		return DocRequest{Title: firstLine(x.Task.Description, 80), Sections: append([]string(nil), defaultSections...)}
	})
	if req.Output == "" {
		req.Output = "README.md"
	}
	if req.Audience == "" {
		req.Audience = "developers"
	}

	doc := Documentation{Title: req.Title, Path: req.Output, Degraded: degraded}
	written := 0
	files := strings.Join(fileList(x.Task.Context), ", ")
	for i, h := range req.Sections {
		body, err := x.Generate(ctx, "You are a technical writer. Reply with Markdown for the section body only.",
			fmt.Sprintf("Document %q for %s.\nSection: %s\nTask: %s\nFiles: %s", req.Title, req.Audience, h, x.Task.Description, files))
		body = strings.TrimSpace(body)
		if err != nil || body == "" {
			body = "_To be written._"
		} else {
			written++
		}
		doc.Sections = append(doc.Sections, DocSection{Heading: h, Body: body})
		x.Progress(ctx, 10+80*(i+1)/len(req.Sections), "wrote "+h)
	}
	if written == 0 {
		return nil, fmt.Errorf("no documentation section could be written")
	}

	doc.Completeness = float64(written) / float64(len(req.Sections))
	doc.Markdown = doc.render()
	x.Score("completeness", doc.Completeness)

	applyFiles(ctx, x, []GeneratedFile{newGeneratedFile(doc.Path, doc.Markdown)}, core.ArtifactDocumentation)
	return doc, nil
}

func (d Documentation) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", d.Title)
	for _, s := range d.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Heading, s.Body)
	}
	return b.String()
}
