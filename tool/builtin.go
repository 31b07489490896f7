package tool

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// Call is what a builtin handler receives: validated arguments plus the
// registry's ambient working directory and environment.
type Call struct {
	Args    map[string]any
	WorkDir string
	Env     map[string]string
}

// String returns a string argument or "".
func (c Call) String(name string) string {
	s, _ := c.Args[name].(string)
	return s
}

// Bool returns a boolean argument or false.
func (c Call) Bool(name string) bool {
	b, _ := c.Args[name].(bool)
	return b
}

// HandlerFunc implements a builtin tool.
type HandlerFunc func(ctx context.Context, call Call) (Output, error)

type builtinExecutor struct {
	handler HandlerFunc
	workDir string
	env     map[string]string
}

func (e *builtinExecutor) Execute(ctx context.Context, args map[string]any) (Output, error) {
	return e.handler(ctx, Call{Args: args, WorkDir: e.workDir, Env: e.env})
}

func (e *builtinExecutor) Shutdown(context.Context) error { return nil }

func defaultHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"file_read":   fileRead,
		"file_write":  fileWrite,
		"list_files":  listFiles,
		"shell_exec":  shellExec,
		"secret_scan": secretScan,
	}
}

// ResolvePath joins p onto workDir and rejects results outside it.
func ResolvePath(workDir, p string) (string, error) {
	root, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, p)
	}
	target = filepath.Clean(target)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", core.NewValidationError("tool.ResolvePath", fmt.Sprintf("path %q escapes the working directory", p))
	}
	return target, nil
}

func fileRead(_ context.Context, call Call) (Output, error) {
	path, err := ResolvePath(call.WorkDir, call.String("path"))
	if err != nil {
		return Output{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Output{}, err
	}
	return Output{Value: string(b)}, nil
}

func fileWrite(_ context.Context, call Call) (Output, error) {
	path, err := ResolvePath(call.WorkDir, call.String("path"))
	if err != nil {
		return Output{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Output{}, err
	}
	content := call.String("content")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Output{}, err
	}
	return Output{Value: map[string]any{"path": call.String("path"), "bytes": len(content)}}, nil
}

func listFiles(_ context.Context, call Call) (Output, error) {
	dir := call.String("path")
	if dir == "" {
		dir = "."
	}
	root, err := ResolvePath(call.WorkDir, dir)
	if err != nil {
		return Output{}, err
	}
	pattern := call.String("pattern")
	recursive := call.Bool("recursive")

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}
		rel, _ := filepath.Rel(root, path)
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	sort.Strings(files)
	return Output{Value: files}, nil
}

// shellExec runs a command through sh. Caller env and cwd are layered over
// the registry defaults, which are layered over the process environment.
func shellExec(ctx context.Context, call Call) (Output, error) {
	dir := call.WorkDir
	if cwd := call.String("cwd"); cwd != "" {
		resolved, err := ResolvePath(call.WorkDir, cwd)
		if err != nil {
			return Output{}, err
		}
		dir = resolved
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range call.Env {
		env[k] = v
	}
	switch extra := call.Args["env"].(type) {
	case map[string]any:
		for k, v := range extra {
			env[k] = fmt.Sprint(v)
		}
	case map[string]string:
		for k, v := range extra {
			env[k] = v
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", call.String("command"))
	cmd.Dir = dir
	cmd.Env = make([]string, 0, len(env))
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	sort.Strings(cmd.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
		return out, fmt.Errorf("command failed: %w", err)
	}
	out.Value = strings.TrimRight(out.Stdout, "\n")
	return out, nil
}

// SecretFinding is one match reported by secret_scan.
type SecretFinding struct {
	Rule    string `json:"rule"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

var secretRules = []struct {
	name string
	re   *regexp.Regexp
}{
	{"aws-access-key", regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"private-key", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack-token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"anthropic-key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	{"generic-secret", regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|passw(or)?d)\b\s*[:=]\s*["'][^"'\s]{8,}["']`)},
}

// ScanSecrets applies the secret rules line by line.
func ScanSecrets(path, content string) []SecretFinding {
	var findings []SecretFinding
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		for _, rule := range secretRules {
			if m := rule.re.FindString(text); m != "" {
				findings = append(findings, SecretFinding{Rule: rule.name, Path: path, Line: line, Snippet: redact(m)})
			}
		}
	}
	return findings
}

func redact(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func secretScan(_ context.Context, call Call) (Output, error) {
	if content, ok := call.Args["content"].(string); ok {
		return Output{Value: ScanSecrets("", content)}, nil
	}
	path := call.String("path")
	if path == "" {
		return Output{}, core.NewValidationError("tool.secret_scan", "either content or path is required")
	}
	root, err := ResolvePath(call.WorkDir, path)
	if err != nil {
		return Output{}, err
	}

	base, err := filepath.Abs(call.WorkDir)
	if err != nil {
		return Output{}, err
	}
	findings := []SecretFinding{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if bytes.IndexByte(b, 0) >= 0 {
			return nil
		}
		rel, _ := filepath.Rel(base, p)
		findings = append(findings, ScanSecrets(filepath.ToSlash(rel), string(b))...)
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return Output{Value: findings}, nil
}
