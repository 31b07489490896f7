package router

import (
	"context"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/model"
)

// HealthStatus is the result of a model health probe.
type HealthStatus struct {
	Model     string        `json:"model"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

const maxProbeTimeout = 10 * time.Second

// CheckModelHealth sends a minimal probe to a model. Concurrent checks of the
// same model share one probe and results are cached for HealthCacheTTL.
// Probes bypass rate limiting and metrics.
func (r *Router) CheckModelHealth(ctx context.Context, name string) (HealthStatus, error) {
	cfg, ok := r.Model(name)
	if !ok {
		return HealthStatus{}, core.NewNotFoundError("router.CheckModelHealth", "model", name)
	}

	r.healthMu.Lock()
	cached, hit := r.healthCache[name]
	r.healthMu.Unlock()
	if hit && time.Since(cached.CheckedAt) < r.opts.HealthCacheTTL {
		return cached, nil
	}

	v, err, _ := r.health.Do(name, func() (any, error) {
		status := r.probe(ctx, cfg)
		r.healthMu.Lock()
		r.healthCache[name] = status
		r.healthMu.Unlock()
		return status, nil
	})
	if err != nil {
		return HealthStatus{}, err
	}
	return v.(HealthStatus), nil
}

func (r *Router) probe(ctx context.Context, cfg core.ModelConfig) HealthStatus {
	status := HealthStatus{Model: cfg.Name}
	backend, err := r.backendFor(cfg.Name)
	if err != nil {
		status.Error = err.Error()
		status.CheckedAt = time.Now()
		return status
	}

	// Waiters share this probe, so it must not inherit the first caller's
	// cancellation.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), min(r.opts.Timeout, maxProbeTimeout))
	defer cancel()

	start := time.Now()
	respCh, errCh := backend.Generate(pctx, model.Request{
		Model:     cfg.Name,
		Messages:  []model.Message{{Role: model.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	_, err = model.Collect(pctx, respCh, errCh, nil)
	status.Latency = time.Since(start)
	status.CheckedAt = time.Now()
	if err != nil {
		status.Error = err.Error()
		r.opts.Logger.Warn("router.health.unhealthy", "model", cfg.Name, "error", err)
		return status
	}
	status.Healthy = true
	return status
}

// CheckAllModels probes every registered model.
func (r *Router) CheckAllModels(ctx context.Context) []HealthStatus {
	models := r.Models()
	out := make([]HealthStatus, 0, len(models))
	for _, m := range models {
		s, err := r.CheckModelHealth(ctx, m.Name)
		if err != nil {
			s = HealthStatus{Model: m.Name, Error: err.Error(), CheckedAt: time.Now()}
		}
		out = append(out, s)
	}
	return out
}
