package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/telemetry"
)

// Options configures a Registry.
type Options struct {
	// WorkDir confines file tools and is the default directory for commands.
	WorkDir string
	// Env is layered over the process environment for commands.
	Env map[string]string
	// Completer serves model-backed tools.
	Completer Completer
	// DisableDefaults skips registering DefaultConfigs.
	DisableDefaults bool
	Logger          logging.Logger
	Meter           metric.Meter
}

// Metrics aggregates calls of one tool.
type Metrics struct {
	Name               string        `json:"name"`
	Calls              int64         `json:"calls"`
	Successes          int64         `json:"successes"`
	Failures           int64         `json:"failures"`
	ValidationFailures int64         `json:"validation_failures"`
	TotalLatency       time.Duration `json:"total_latency"`
	AverageLatency     time.Duration `json:"average_latency"`
	LastCalled         time.Time     `json:"last_called,omitempty"`
	LastError          string        `json:"last_error,omitempty"`
}

type entry struct {
	cfg      Config
	executor Executor
}

// Registry holds tools by unique name.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	tools    map[string]*entry
	order    []string
	handlers map[string]HandlerFunc
	closed   bool

	metricsMu sync.Mutex
	metrics   map[string]*Metrics

	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// New creates a registry, registering the default tools unless disabled.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		WorkDir: ".",
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Meter == nil {
		opts.Meter = telemetry.Meter("elite/tool")
	}

	r := &Registry{
		opts:     opts,
		tools:    make(map[string]*entry),
		handlers: defaultHandlers(),
		metrics:  make(map[string]*Metrics),
	}
	var err error
	if r.calls, err = opts.Meter.Int64Counter("tool.calls", metric.WithDescription("Tool calls by outcome")); err != nil {
		opts.Logger.Warn("tool.instrument", "name", "tool.calls", "error", err)
	}
	if r.latency, err = opts.Meter.Float64Histogram("tool.latency", metric.WithUnit("ms")); err != nil {
		opts.Logger.Warn("tool.instrument", "name", "tool.latency", "error", err)
	}

	if !opts.DisableDefaults {
		for _, cfg := range DefaultConfigs(opts.Completer != nil) {
			if err := r.RegisterTool(cfg); err != nil {
				opts.Logger.Error("tool.default.register_failed", "tool", cfg.Name, "error", err)
			}
		}
	}
	return r
}

// RegisterBuiltin installs (or replaces) the handler used by builtin tools of
// the given name. Register the tool's Config afterwards.
func (r *Registry) RegisterBuiltin(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// RegisterTool validates and stores cfg with zeroed metrics. Names are unique.
func (r *Registry) RegisterTool(cfg Config) error {
	const op = "tool.Registry.RegisterTool"
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[cfg.Name]; exists {
		return core.NewValidationError(op, fmt.Sprintf("tool %q already registered", cfg.Name))
	}
	exec, err := r.executorFor(cfg)
	if err != nil {
		return err
	}
	r.tools[cfg.Name] = &entry{cfg: cfg, executor: exec}
	r.order = append(r.order, cfg.Name)

	r.metricsMu.Lock()
	r.metrics[cfg.Name] = &Metrics{Name: cfg.Name}
	r.metricsMu.Unlock()

	r.opts.Logger.Debug("tool.registered", "tool", cfg.Name, "kind", cfg.Kind, "category", cfg.Category)
	return nil
}

// executorFor picks the strategy for cfg. Callers hold r.mu.
func (r *Registry) executorFor(cfg Config) (Executor, error) {
	const op = "tool.Registry.RegisterTool"
	switch cfg.Kind {
	case KindBuiltin:
		h, ok := r.handlers[cfg.Name]
		if !ok {
			return nil, core.NewConfigurationError(op, fmt.Sprintf("no builtin handler for %q", cfg.Name))
		}
		return &builtinExecutor{handler: h, workDir: r.opts.WorkDir, env: r.opts.Env}, nil
	case KindExternal:
		return &externalExecutor{command: cfg.Command, args: cfg.Args, workDir: r.opts.WorkDir, env: r.opts.Env}, nil
	case KindModel:
		if r.opts.Completer == nil {
			return nil, core.NewConfigurationError(op, fmt.Sprintf("model-backed tool %q needs a completer", cfg.Name))
		}
		return &modelExecutor{prompt: cfg.Prompt, completer: r.opts.Completer}, nil
	}
	return nil, core.NewConfigurationError(op, fmt.Sprintf("unknown tool kind %q", cfg.Kind))
}

// GetToolConfigs returns every config in registration order.
func (r *Registry) GetToolConfigs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].cfg)
	}
	return out
}

// GetToolConfig returns one config.
func (r *Registry) GetToolConfig(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Config{}, false
	}
	return e.cfg, true
}

// GetToolMetrics returns a snapshot of one tool's metrics.
func (r *Registry) GetToolMetrics(name string) (Metrics, error) {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	m, ok := r.metrics[name]
	if !ok {
		return Metrics{}, core.NewNotFoundError("tool.Registry.GetToolMetrics", "tool", name)
	}
	return *m, nil
}

// AllToolMetrics returns snapshots for every tool, sorted by name.
func (r *Registry) AllToolMetrics() []Metrics {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	out := make([]Metrics, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExecuteTool validates args and runs the tool. The error return is reserved
// for unknown tools, invalid arguments and a closed registry; execution
// failures come back as a Result with Success false. Retryable tools get one
// extra attempt.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	const op = "tool.Registry.ExecuteTool"

	r.mu.RLock()
	e, ok := r.tools[name]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, &core.Error{Kind: core.KindConflict, Op: op, Message: "registry is shut down"}
	}
	if !ok {
		return nil, core.NewNotFoundError(op, "tool", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if problems := ValidateArgs(e.cfg.Parameters, args); len(problems) > 0 {
		r.metricsMu.Lock()
		r.metrics[name].ValidationFailures++
		r.metricsMu.Unlock()
		r.opts.Logger.Warn("tool.call.validation_failed", "tool", name, "violations", problems)
		return nil, core.NewValidationError(op, fmt.Sprintf("invalid arguments for tool %s", name), problems...)
	}

	attempts := 1
	if e.cfg.Retryable {
		attempts = 2
	}

	start := time.Now()
	var (
		out Output
		err error
		n   int
	)
	for n = 1; n <= attempts; n++ {
		out, err = r.run(ctx, e, args)
		if err == nil || ctx.Err() != nil || !core.IsRetryable(err) {
			break
		}
		if n < attempts {
			r.opts.Logger.Debug("tool.call.retry", "tool", name, "error", err)
		}
	}
	n = min(n, attempts)
	dur := time.Since(start)

	res := &Result{
		Tool:     name,
		Success:  err == nil,
		Output:   out.Value,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
		Duration: dur,
		Attempts: n,
	}
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = core.KindOf(err)
	}
	r.record(ctx, name, dur, err)
	return res, nil
}

// run executes one attempt under the tool timeout, converting panics and
// deadline overruns into taxonomy errors.
func (r *Registry) run(ctx context.Context, e *entry, args map[string]any) (out Output, err error) {
	const op = "tool.Registry.run"
	rctx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewExecutionError(op, fmt.Errorf("tool %s panicked: %v", e.cfg.Name, rec))
		}
	}()

	out, err = e.executor.Execute(rctx, args)
	if err == nil {
		return out, nil
	}
	if ctx.Err() == nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return out, core.NewTimeoutError(op, fmt.Errorf("tool %s exceeded %s: %w", e.cfg.Name, e.cfg.Timeout, err))
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return out, err
	}
	return out, core.NewExecutionError(op, err)
}

func (r *Registry) record(ctx context.Context, name string, dur time.Duration, err error) {
	r.metricsMu.Lock()
	m := r.metrics[name]
	m.Calls++
	m.TotalLatency += dur
	m.AverageLatency = m.TotalLatency / time.Duration(m.Calls)
	m.LastCalled = time.Now()
	if err != nil {
		m.Failures++
		m.LastError = err.Error()
	} else {
		m.Successes++
	}
	r.metricsMu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("tool", name), attribute.String("outcome", outcome))
	if r.calls != nil {
		r.calls.Add(ctx, 1, attrs)
	}
	if r.latency != nil {
		r.latency.Record(ctx, float64(dur.Microseconds())/1000, attrs)
	}

	if sl, ok := r.opts.Logger.(*logging.StructuredLogger); ok {
		sl.LogToolCall(name, dur, err)
		return
	}
	if err != nil {
		r.opts.Logger.Warn("tool.call.failed", "tool", name, "duration", dur, "error", err)
	} else {
		r.opts.Logger.Debug("tool.call.completed", "tool", name, "duration", dur)
	}
}

// Shutdown releases every executor and refuses further calls.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	entries := make([]*entry, 0, len(r.tools))
	for _, name := range r.order {
		entries = append(entries, r.tools[name])
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.executor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", e.cfg.Name, err))
		}
	}
	return errors.Join(errs...)
}
