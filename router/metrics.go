package router

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/achintir-projects/elite-ai-agent/logging"
)

// ModelMetrics aggregates calls made against one model.
type ModelMetrics struct {
	Model          string          `json:"model"`
	Requests       int64           `json:"requests"`
	Errors         int64           `json:"errors"`
	TotalTokens    int64           `json:"total_tokens"`
	TotalCost      float64         `json:"total_cost"`
	Latencies      []time.Duration `json:"latencies"`
	AverageLatency time.Duration   `json:"average_latency"`
	LastUsed       time.Time       `json:"last_used"`
}

type metricsRegistry struct {
	mu      sync.Mutex
	samples int
	byModel map[string]*ModelMetrics
	cost    float64
}

func newMetricsRegistry(samples int) *metricsRegistry {
	return &metricsRegistry{samples: samples, byModel: make(map[string]*ModelMetrics)}
}

func (m *metricsRegistry) entry(name string) *ModelMetrics {
	e, ok := m.byModel[name]
	if !ok {
		e = &ModelMetrics{Model: name}
		m.byModel[name] = e
	}
	return e
}

func (m *metricsRegistry) observe(e *ModelMetrics, latency time.Duration) {
	e.Latencies = append(e.Latencies, latency)
	if over := len(e.Latencies) - m.samples; over > 0 {
		e.Latencies = append(e.Latencies[:0:0], e.Latencies[over:]...)
	}
	var sum time.Duration
	for _, l := range e.Latencies {
		sum += l
	}
	e.AverageLatency = sum / time.Duration(len(e.Latencies))
	e.LastUsed = time.Now()
}

func (m *metricsRegistry) success(name string, tokens int, cost float64, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(name)
	e.Requests++
	e.TotalTokens += int64(tokens)
	e.TotalCost += cost
	m.cost += cost
	m.observe(e, latency)
}

func (m *metricsRegistry) failure(name string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(name)
	e.Requests++
	e.Errors++
	m.observe(e, latency)
}

func (m *metricsRegistry) totalCost() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

func (m *metricsRegistry) get(name string) (ModelMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byModel[name]
	if !ok {
		return ModelMetrics{}, false
	}
	cp := *e
	cp.Latencies = append([]time.Duration(nil), e.Latencies...)
	return cp, true
}

func (m *metricsRegistry) all() []ModelMetrics {
	m.mu.Lock()
	names := make([]string, 0, len(m.byModel))
	for n := range m.byModel {
		names = append(names, n)
	}
	m.mu.Unlock()
	sort.Strings(names)

	out := make([]ModelMetrics, 0, len(names))
	for _, n := range names {
		if e, ok := m.get(n); ok {
			out = append(out, e)
		}
	}
	return out
}

// GetMetrics returns a snapshot of the metrics for one model. Models that
// were never called report zero values.
func (r *Router) GetMetrics(name string) ModelMetrics {
	if m, ok := r.metrics.get(name); ok {
		return m
	}
	return ModelMetrics{Model: name}
}

// AllMetrics returns snapshots for every model that has been called, by name.
func (r *Router) AllMetrics() []ModelMetrics { return r.metrics.all() }

// TotalCost returns the cumulative cost across all models.
func (r *Router) TotalCost() float64 { return r.metrics.totalCost() }

// instruments mirrors router metrics to OpenTelemetry.
type instruments struct {
	requests    metric.Int64Counter
	tokens      metric.Int64Counter
	cost        metric.Float64Counter
	latency     metric.Float64Histogram
	rateLimited metric.Int64Counter
}

func newInstruments(meter metric.Meter, logger logging.Logger) *instruments {
	in := &instruments{}
	var err error
	if in.requests, err = meter.Int64Counter("router.requests", metric.WithDescription("Model calls by outcome")); err != nil {
		logger.Warn("router.instrument", "name", "router.requests", "error", err)
	}
	if in.tokens, err = meter.Int64Counter("router.tokens", metric.WithDescription("Tokens consumed")); err != nil {
		logger.Warn("router.instrument", "name", "router.tokens", "error", err)
	}
	if in.cost, err = meter.Float64Counter("router.cost", metric.WithDescription("Estimated spend")); err != nil {
		logger.Warn("router.instrument", "name", "router.cost", "error", err)
	}
	if in.latency, err = meter.Float64Histogram("router.latency", metric.WithUnit("ms")); err != nil {
		logger.Warn("router.instrument", "name", "router.latency", "error", err)
	}
	if in.rateLimited, err = meter.Int64Counter("router.rate_limited"); err != nil {
		logger.Warn("router.instrument", "name", "router.rate_limited", "error", err)
	}
	return in
}

func (in *instruments) record(ctx context.Context, name, outcome string, tokens int, cost float64, latency time.Duration) {
	attrs := metric.WithAttributes(attribute.String("model", name), attribute.String("outcome", outcome))
	if in.requests != nil {
		in.requests.Add(ctx, 1, attrs)
	}
	if in.tokens != nil && tokens > 0 {
		in.tokens.Add(ctx, int64(tokens), attrs)
	}
	if in.cost != nil && cost > 0 {
		in.cost.Add(ctx, cost, attrs)
	}
	if in.latency != nil {
		in.latency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
	}
}

func (in *instruments) countRateLimited(key string) {
	if in.rateLimited != nil {
		in.rateLimited.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
	}
}
