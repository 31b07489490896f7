package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/model"
	"github.com/achintir-projects/elite-ai-agent/telemetry"
)

// Request is a generation request as seen by the router.
type Request struct {
	Messages     []model.Message `json:"messages"`
	Instructions string          `json:"instructions,omitempty"`
	// Model is an optional preference; selection still applies.
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	// Stream marks the request as wanting streaming; recommendations favour
	// streaming-capable models for it.
	Stream bool `json:"stream,omitempty"`
}

func (r Request) text() string {
	return model.Request{Instructions: r.Instructions, Messages: r.Messages}.PromptText()
}

// Response is the final outcome of a routed generation.
type Response struct {
	ID           string           `json:"id"`
	Model        string           `json:"model"`
	Content      string           `json:"content"`
	Usage        model.TokenUsage `json:"usage"`
	FinishReason string           `json:"finish_reason"`
	Latency      time.Duration    `json:"latency"`
	Cost         float64          `json:"cost"`
	// Error is set only on batch members that failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the response is a batch error sentinel.
func (r Response) Failed() bool { return r.Error != "" }

// Router selects models and drives generation with retries and fallbacks.
type Router struct {
	opts Options

	mu       sync.RWMutex
	models   map[string]core.ModelConfig
	order    []string
	backends map[string]model.Model

	limiter     *windowLimiter
	metrics     *metricsRegistry
	instruments *instruments

	health      singleflight.Group
	healthMu    sync.Mutex
	healthCache map[string]HealthStatus

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Router.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Config = opts.Config.withDefaults()
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Meter == nil {
		opts.Meter = telemetry.Meter("elite/router")
	}

	return &Router{
		opts:        opts,
		models:      make(map[string]core.ModelConfig),
		backends:    make(map[string]model.Model),
		limiter:     newWindowLimiter(opts.RateLimit),
		metrics:     newMetricsRegistry(opts.LatencySamples),
		instruments: newInstruments(opts.Meter, opts.Logger),
		healthCache: make(map[string]HealthStatus),
		sleep:       sleepCtx,
	}
}

// Config returns the effective router configuration.
func (r *Router) Config() Config { return r.opts.Config }

// RegisterModel adds or replaces a model configuration. Re-registering keeps
// the original position in selection order.
func (r *Router) RegisterModel(cfg core.ModelConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.models[cfg.Name] = cfg
	r.opts.Logger.Debug("router.model.registered", "model", cfg.Name, "provider", cfg.Provider,
		"max_context_tokens", cfg.MaxContextTokens, "streaming", cfg.SupportsStreaming)
	return nil
}

// RegisterBackend routes a single model name to a dedicated backend.
func (r *Router) RegisterBackend(name string, backend model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend
}

// Models returns the registered models in registration order.
func (r *Router) Models() []core.ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ModelConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Model returns the configuration registered under name.
func (r *Router) Model(name string) (core.ModelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.models[name]
	return cfg, ok
}

func (r *Router) backendFor(name string) (model.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	if r.opts.Backend != nil {
		return r.opts.Backend, nil
	}
	return nil, core.NewConfigurationError("router.backend", fmt.Sprintf("no backend serves model %q", name))
}

// rateKey is the rate-limit key: the requested model or, absent one, the
// default model.
func (r *Router) rateKey(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	if r.opts.DefaultModel != "" {
		return r.opts.DefaultModel
	}
	return "default"
}

func (r *Router) admit(op string, req Request) error {
	key := r.rateKey(req)
	if !r.limiter.Allow(key) {
		r.opts.Logger.Warn("router.rate_limited", "key", key)
		r.instruments.countRateLimited(key)
		return core.NewRateLimitError(op, key)
	}
	return nil
}

// GenerateResponse routes a request and returns the final response.
func (r *Router) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	const op = "router.GenerateResponse"
	if len(req.Messages) == 0 {
		return nil, core.NewValidationError(op, "request has no messages")
	}
	if err := r.admit(op, req); err != nil {
		return nil, err
	}
	selected, err := r.SelectModel(req)
	if err != nil {
		return nil, err
	}

	resp, err := r.withRetry(ctx, selected, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil || !core.IsRetryable(err) {
		return nil, err
	}

	for _, name := range r.opts.FallbackModels {
		if name == selected.Name {
			continue
		}
		fb, ok := r.Model(name)
		if !ok {
			continue
		}
		r.opts.Logger.Warn("router.fallback", "from", selected.Name, "to", fb.Name, "error", err)
		resp, ferr := r.attempt(ctx, fb, req)
		if ferr == nil {
			return resp, nil
		}
		err = ferr
		if ctx.Err() != nil {
			break
		}
	}
	return nil, err
}

func (r *Router) withRetry(ctx context.Context, cfg core.ModelConfig, req Request) (*Response, error) {
	var lastErr error
	for i := 0; i < r.opts.MaxRetries; i++ {
		resp, err := r.attempt(ctx, cfg, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !core.IsRetryable(err) || i == r.opts.MaxRetries-1 {
			break
		}
		delay := r.backoff(i)
		r.opts.Logger.Warn("router.retry", "model", cfg.Name, "attempt", i+1, "delay", delay, "error", err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	return nil, lastErr
}

// backoff returns the delay after the given zero-based attempt: the initial
// backoff doubled per attempt, capped at MaxBackoff.
func (r *Router) backoff(attempt int) time.Duration {
	d := r.opts.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= r.opts.MaxBackoff {
			return r.opts.MaxBackoff
		}
	}
	return d
}

func (r *Router) modelRequest(cfg core.ModelConfig, req Request, stream bool) model.Request {
	return model.Request{
		Model:        cfg.Name,
		Instructions: req.Instructions,
		Messages:     req.Messages,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		Stream:       stream,
	}
}

// attempt makes one call against cfg raced against the attempt timeout.
func (r *Router) attempt(ctx context.Context, cfg core.ModelConfig, req Request) (*Response, error) {
	const op = "router.attempt"
	backend, err := r.backendFor(cfg.Name)
	if err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	respCh, errCh := backend.Generate(actx, r.modelRequest(cfg, req, false))
	out, err := model.Collect(actx, respCh, errCh, nil)
	latency := time.Since(start)
	if err != nil {
		err = r.classify(ctx, actx, op, err)
		r.recordFailure(ctx, cfg.Name, latency, err)
		return nil, err
	}
	resp := r.finish(cfg, req, out, latency)
	r.recordSuccess(ctx, resp)
	return resp, nil
}

// classify maps a backend failure into the error taxonomy. Parent context
// cancellation is returned untouched so callers can tell it apart.
func (r *Router) classify(parent, attempt context.Context, op string, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(attempt.Err(), context.DeadlineExceeded):
		return core.NewTimeoutError(op, err)
	default:
		var ce *core.Error
		if errors.As(err, &ce) {
			return err
		}
		return core.NewExecutionError(op, err)
	}
}

func (r *Router) finish(cfg core.ModelConfig, req Request, out model.Response, latency time.Duration) *Response {
	usage := model.TokenUsage{}
	if out.Usage != nil {
		usage = *out.Usage
	}
	if usage.TotalTokens == 0 {
		usage.PromptTokens = r.estimate(req.text())
		usage.CompletionTokens = r.estimate(out.Text)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	id := out.ID
	if id == "" {
		id = core.NewID()
	}
	finish := out.FinishReason
	if finish == "" {
		finish = "stop"
	}
	return &Response{
		ID:           id,
		Model:        cfg.Name,
		Content:      out.Text,
		Usage:        usage,
		FinishReason: finish,
		Latency:      latency,
		Cost:         float64(usage.TotalTokens) * cfg.CostPerToken,
	}
}

func (r *Router) recordSuccess(ctx context.Context, resp *Response) {
	r.metrics.success(resp.Model, resp.Usage.TotalTokens, resp.Cost, resp.Latency)
	r.instruments.record(ctx, resp.Model, "success", resp.Usage.TotalTokens, resp.Cost, resp.Latency)
	if sl, ok := r.opts.Logger.(*logging.StructuredLogger); ok {
		sl.LogModelCall(resp.Model, resp.Usage.TotalTokens, resp.Cost, resp.Latency, nil)
		return
	}
	r.opts.Logger.Debug("model.call.completed", "model", resp.Model, "tokens", resp.Usage.TotalTokens,
		"cost", resp.Cost, "latency", resp.Latency)
}

func (r *Router) recordFailure(ctx context.Context, name string, latency time.Duration, err error) {
	r.metrics.failure(name, latency)
	r.instruments.record(ctx, name, "error", 0, 0, latency)
	if sl, ok := r.opts.Logger.(*logging.StructuredLogger); ok {
		sl.LogModelCall(name, 0, 0, latency, err)
		return
	}
	r.opts.Logger.Warn("model.call.failed", "model", name, "latency", latency, "error", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete sends prompt as a single user message and returns the content.
func (r *Router) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := r.GenerateResponse(ctx, Request{Messages: []model.Message{{Role: model.RoleUser, Content: prompt}}})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
