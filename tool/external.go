package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// externalExecutor builds a command line from the tool config. Each arg
// template renders against the call arguments; args rendering to an empty
// string are dropped.
type externalExecutor struct {
	command string
	args    []string
	workDir string
	env     map[string]string
}

func (e *externalExecutor) render(args map[string]any) ([]string, error) {
	out := make([]string, 0, len(e.args))
	for _, tpl := range e.args {
		s, err := util.RenderTemplate(tpl, args)
		if err != nil {
			return nil, fmt.Errorf("render arg %q: %w", tpl, err)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *externalExecutor) Execute(ctx context.Context, args map[string]any) (Output, error) {
	argv, err := e.render(args)
	if err != nil {
		return Output{}, err
	}

	cmd := exec.CommandContext(ctx, e.command, argv...)
	cmd.Dir = e.workDir
	if len(e.env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range e.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
		return out, fmt.Errorf("%s %s: %w", e.command, strings.Join(argv, " "), err)
	}
	out.Value = strings.TrimRight(out.Stdout, "\n")
	return out, nil
}

func (e *externalExecutor) Shutdown(context.Context) error { return nil }

// modelExecutor renders the prompt template and asks the completer.
type modelExecutor struct {
	prompt    string
	completer Completer
}

func (e *modelExecutor) Execute(ctx context.Context, args map[string]any) (Output, error) {
	prompt, err := util.RenderTemplate(e.prompt, args)
	if err != nil {
		return Output{}, fmt.Errorf("render prompt: %w", err)
	}
	text, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return Output{}, err
	}
	return Output{Value: text}, nil
}

func (e *modelExecutor) Shutdown(context.Context) error { return nil }
