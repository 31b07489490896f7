package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// printer renders lifecycle events and results.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer { return &printer{out: out} }

func eventColor(t core.EventType) *color.Color {
	switch t {
	case core.EventTaskCompleted:
		return color.New(color.FgGreen)
	case core.EventTaskFailed:
		return color.New(color.FgRed)
	case core.EventTaskCancelled:
		return color.New(color.FgYellow)
	case core.EventTaskProgress:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

func (p *printer) event(e core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("%s %-15s %s", e.Timestamp.Format("15:04:05"), e.Type.String(), shortID(e.TaskID))
	switch {
	case e.Type == core.EventTaskProgress:
		line += fmt.Sprintf(" %3d%% %s", e.Percent, e.Message)
	case e.Err != nil:
		line += " " + e.Err.Error()
	case e.Message != "":
		line += " " + e.Message
	}
	eventColor(e.Type).Fprintln(p.out, line)
}

type markdowner interface {
	Markdown() string
}

func (p *printer) result(t *core.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := eventColor(core.EventTaskCompleted)
	if t.Status != core.TaskStatusCompleted {
		status = eventColor(core.EventTaskFailed)
	}
	fmt.Fprintf(p.out, "\n%s %s (%s, %d attempt(s))\n", status.Sprint(strings.ToUpper(string(t.Status))), t.ID, t.Kind, t.Attempts)
	if t.Result == nil {
		return
	}
	r := t.Result
	for _, e := range r.Errors {
		fmt.Fprintf(p.out, "  %s %s\n", color.RedString("error:"), e)
	}
	fmt.Fprintf(p.out, "  duration %s, model calls %d, tool calls %d, tokens %d\n",
		r.Metrics.Duration.Round(1e6), r.Metrics.ModelCalls, r.Metrics.ToolCalls, r.Metrics.TokensUsed)
	if len(r.Metrics.Scores) > 0 {
		keys := make([]string, 0, len(r.Metrics.Scores))
		for k := range r.Metrics.Scores {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%.2f", k, r.Metrics.Scores[k]))
		}
		fmt.Fprintf(p.out, "  scores %s\n", strings.Join(parts, " "))
	}
	for _, a := range r.Artifacts {
		fmt.Fprintf(p.out, "  %s %s\n", color.CyanString(string(a.Type)), a.Path)
	}
	switch out := r.Output.(type) {
	case nil:
	case markdowner:
		fmt.Fprintf(p.out, "\n%s\n", out.Markdown())
	default:
		b, err := json.MarshalIndent(out, "  ", "  ")
		if err == nil {
			fmt.Fprintf(p.out, "\n  %s\n", b)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
