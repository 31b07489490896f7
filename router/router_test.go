package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/testutil"
	"github.com/achintir-projects/elite-ai-agent/model"
)

func userRequest(text string) Request {
	return Request{Messages: []model.Message{{Role: model.RoleUser, Content: text}}}
}

func newTestRouter(t *testing.T, backend model.Model, fns ...func(o *Options)) *Router {
	t.Helper()
	r := New(append([]func(o *Options){func(o *Options) {
		o.Backend = backend
		o.DefaultModel = "small"
		o.InitialBackoff = time.Millisecond
		o.MaxBackoff = 4 * time.Millisecond
	}}, fns...)...)
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "small", MaxContextTokens: 100, SupportsStreaming: true, CostPerToken: 0.001}))
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "large", MaxContextTokens: 10000, CostPerToken: 0.01}))
	return r
}

func TestGenerateResponse(t *testing.T) {
	r := newTestRouter(t, model.NewMockModel("mock", "mock"))

	resp, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "small", resp.Model)
	assert.Equal(t, "Mock response to: hi", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.ID)

	m := r.GetMetrics("small")
	assert.EqualValues(t, 1, m.Requests)
	assert.EqualValues(t, 0, m.Errors)
	assert.EqualValues(t, resp.Usage.TotalTokens, m.TotalTokens)
	assert.Len(t, m.Latencies, 1)
	assert.InDelta(t, resp.Cost, r.TotalCost(), 1e-9)
}

func TestGenerateResponse_RejectsEmptyRequest(t *testing.T) {
	r := newTestRouter(t, model.NewMockModel("mock", "mock"))
	_, err := r.GenerateResponse(context.Background(), Request{})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestSelectModel(t *testing.T) {
	r := newTestRouter(t, model.NewMockModel("mock", "mock"))

	t.Run("default fits", func(t *testing.T) {
		cfg, err := r.SelectModel(userRequest("short prompt"))
		require.NoError(t, err)
		assert.Equal(t, "small", cfg.Name)
	})

	t.Run("context too large moves to first fit", func(t *testing.T) {
		cfg, err := r.SelectModel(userRequest(strings.Repeat("x", 1000)))
		require.NoError(t, err)
		assert.Equal(t, "large", cfg.Name)
	})

	t.Run("unknown preference falls back to default", func(t *testing.T) {
		req := userRequest("hi")
		req.Model = "does-not-exist"
		cfg, err := r.SelectModel(req)
		require.NoError(t, err)
		assert.Equal(t, "small", cfg.Name)
	})

	t.Run("explicit preference", func(t *testing.T) {
		req := userRequest("hi")
		req.Model = "large"
		cfg, err := r.SelectModel(req)
		require.NoError(t, err)
		assert.Equal(t, "large", cfg.Name)
	})
}

func TestSelectModel_NoModels(t *testing.T) {
	r := New()
	_, err := r.SelectModel(userRequest("hi"))
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestSelectModel_Budget(t *testing.T) {
	r := New(func(o *Options) {
		o.DefaultModel = "premium"
		o.CostBudget = 10
	})
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "premium", MaxContextTokens: 1000, CostPerToken: 1}))
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "free", MaxContextTokens: 1000}))

	// 100 chars estimate to 25 tokens: 25 > budget of 10.
	cfg, err := r.SelectModel(userRequest(strings.Repeat("a", 100)))
	require.NoError(t, err)
	assert.Equal(t, "free", cfg.Name)

	// 20 chars estimate to 5 tokens and fit the budget.
	cfg, err = r.SelectModel(userRequest(strings.Repeat("a", 20)))
	require.NoError(t, err)
	assert.Equal(t, "premium", cfg.Name)
}

func TestEstimateTokens(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.EstimateTokens(Request{}))
	assert.Equal(t, 1, r.EstimateTokens(userRequest("abc")))
	assert.Equal(t, 3, r.EstimateTokens(userRequest("abcdefghi")))
	assert.InDelta(t, 0.3, EstimateCost(core.ModelConfig{CostPerToken: 0.1}, 3), 1e-9)
}

func TestRateLimit(t *testing.T) {
	backend := testutil.NewScriptedModel()
	r := newTestRouter(t, backend, func(o *Options) {
		o.RateLimit = RateLimit{Requests: 2, Window: time.Minute}
	})

	for i := 0; i < 2; i++ {
		_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
		require.NoError(t, err)
	}
	_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrRateLimited))
	assert.Equal(t, 2, backend.Calls())

	// Another key has its own window.
	req := userRequest("hi")
	req.Model = "large"
	_, err = r.GenerateResponse(context.Background(), req)
	assert.NoError(t, err)
}

func TestWindowLimiter_Slides(t *testing.T) {
	now := time.Unix(0, 0)
	l := newWindowLimiter(RateLimit{Requests: 1, Window: time.Second})
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	assert.Equal(t, 0, l.Remaining("k"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("k"))

	unlimited := newWindowLimiter(RateLimit{})
	assert.True(t, unlimited.Allow("k"))
	assert.Equal(t, -1, unlimited.Remaining("k"))
}

func TestRetryWithBackoff(t *testing.T) {
	boom := errors.New("transient")
	backend := testutil.NewScriptedModel(testutil.Fail(boom), testutil.Fail(boom), testutil.Text("finally"))
	r := newTestRouter(t, backend, func(o *Options) {
		o.MaxRetries = 3
		o.InitialBackoff = 10 * time.Millisecond
		o.MaxBackoff = time.Second
	})
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	resp, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Content)
	assert.Equal(t, 3, backend.Calls())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)

	m := r.GetMetrics("small")
	assert.EqualValues(t, 3, m.Requests)
	assert.EqualValues(t, 2, m.Errors)
}

func TestBackoffCapped(t *testing.T) {
	r := New(func(o *Options) {
		o.InitialBackoff = time.Second
		o.MaxBackoff = 5 * time.Second
	})
	assert.Equal(t, time.Second, r.backoff(0))
	assert.Equal(t, 2*time.Second, r.backoff(1))
	assert.Equal(t, 4*time.Second, r.backoff(2))
	assert.Equal(t, 5*time.Second, r.backoff(3))
	assert.Equal(t, 5*time.Second, r.backoff(10))
}

func TestRetryExhaustedThenFallback(t *testing.T) {
	primary := testutil.NewScriptedModel(testutil.Fail(errors.New("down")))
	fallback := testutil.NewScriptedModel(testutil.Text("from fallback"))
	r := newTestRouter(t, primary, func(o *Options) {
		o.MaxRetries = 2
		o.FallbackModels = []string{"small", "missing", "backup"}
	})
	r.sleep = func(context.Context, time.Duration) error { return nil }
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "backup", MaxContextTokens: 100}))
	r.RegisterBackend("backup", fallback)

	resp, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Model)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, 2, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
}

func TestAllAttemptsFail(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Fail(errors.New("down")))
	r := newTestRouter(t, backend, func(o *Options) { o.MaxRetries = 2 })
	r.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExecution))
	assert.Equal(t, 2, backend.Calls())
}

func TestNonRetryableErrorIsNotRetried(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Fail(core.NewValidationError("backend", "bad request")))
	r := newTestRouter(t, backend, func(o *Options) { o.MaxRetries = 3 })

	_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Equal(t, 1, backend.Calls())
}

func TestAttemptTimeout(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Reply{Text: "late", Delay: time.Second})
	r := newTestRouter(t, backend, func(o *Options) {
		o.MaxRetries = 1
		o.Timeout = 20 * time.Millisecond
	})

	_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTimeout))
}

func TestMissingBackend(t *testing.T) {
	r := New(func(o *Options) { o.DefaultModel = "orphan" })
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "orphan", MaxContextTokens: 100}))

	_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestRegisterModel_Invalid(t *testing.T) {
	r := New()
	err := r.RegisterModel(core.ModelConfig{})
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Empty(t, r.Models())
}

func TestGenerateBatchResponses(t *testing.T) {
	r := newTestRouter(t, model.NewMockModel("mock", "mock"))

	reqs := make([]Request, 0, 7)
	for i := 0; i < 7; i++ {
		reqs = append(reqs, userRequest(string(rune('a'+i))))
	}
	reqs[3] = Request{} // invalid

	out := r.GenerateBatchResponses(context.Background(), reqs)
	require.Len(t, out, 7)
	for i, resp := range out {
		if i == 3 {
			assert.True(t, resp.Failed())
			assert.Equal(t, "error", resp.FinishReason)
			continue
		}
		assert.False(t, resp.Failed())
		assert.Equal(t, "Mock response to: "+string(rune('a'+i)), resp.Content)
	}
}

func TestGenerateBatchResponses_GroupConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	backend := testutil.NewScriptedModel()
	backend.Handler = func(model.Request) (string, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	}
	r := newTestRouter(t, backend, func(o *Options) { o.BatchSize = 2 })

	reqs := []Request{userRequest("1"), userRequest("2"), userRequest("3"), userRequest("4"), userRequest("5")}
	out := r.GenerateBatchResponses(context.Background(), reqs)
	assert.Len(t, out, 5)
	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, 5, backend.Calls())
}

func TestGenerateStreamingResponse(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Text("one two three"))
	r := newTestRouter(t, backend)

	ch, err := r.GenerateStreamingResponse(context.Background(), userRequest("hi"))
	require.NoError(t, err)

	var (
		deltas strings.Builder
		final  *Response
	)
	for c := range ch {
		if c.Done {
			require.NoError(t, c.Err)
			final = c.Response
			continue
		}
		deltas.WriteString(c.Delta)
	}
	require.NotNil(t, final)
	assert.Equal(t, "one two three", deltas.String())
	assert.Equal(t, "one two three", final.Content)
	assert.True(t, backend.Requests()[0].Stream)
}

func TestGenerateStreamingResponse_UnsupportedModel(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedModel())
	req := userRequest("hi")
	req.Model = "large"

	_, err := r.GenerateStreamingResponse(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Contains(t, err.Error(), "does not support streaming")
}

func TestGetModelRecommendations(t *testing.T) {
	r := newTestRouter(t, model.NewMockModel("mock", "mock"))

	// 1000 chars = 250 tokens: too big for "small".
	big := userRequest(strings.Repeat("x", 1000))
	recs := r.GetModelRecommendations(big)
	require.Len(t, recs, 2)
	assert.Equal(t, "large", recs[0].Model.Name)
	assert.Contains(t, recs[1].Reasons, "context window too small")

	small := userRequest("hello")
	small.Stream = true
	recs = r.GetModelRecommendations(small)
	require.Len(t, recs, 2)
	assert.Equal(t, "small", recs[0].Model.Name)
	assert.Contains(t, recs[0].Reasons, "supports streaming")
	// The most expensive model carries the full cost penalty.
	assert.InDelta(t, 80, recs[1].Score, 1e-9)

	// Recommendations never consume rate budget or call backends.
	assert.Empty(t, r.AllMetrics())
}

func TestCheckModelHealth(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Text("pong"))
	r := newTestRouter(t, backend, func(o *Options) { o.HealthCacheTTL = time.Minute })

	s, err := r.CheckModelHealth(context.Background(), "small")
	require.NoError(t, err)
	assert.True(t, s.Healthy)

	again, err := r.CheckModelHealth(context.Background(), "small")
	require.NoError(t, err)
	assert.Equal(t, s.CheckedAt, again.CheckedAt)
	assert.Equal(t, 1, backend.Calls())
	assert.Empty(t, r.AllMetrics())

	_, err = r.CheckModelHealth(context.Background(), "nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestCheckModelHealth_Unhealthy(t *testing.T) {
	backend := testutil.NewScriptedModel(testutil.Fail(errors.New("down")))
	r := newTestRouter(t, backend)

	all := r.CheckAllModels(context.Background())
	require.Len(t, all, 2)
	for _, s := range all {
		assert.False(t, s.Healthy)
		assert.Contains(t, s.Error, "down")
	}
}

func TestLatencySamplesBounded(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedModel(), func(o *Options) {
		o.LatencySamples = 3
		o.RateLimit = RateLimit{}
	})
	for i := 0; i < 5; i++ {
		_, err := r.GenerateResponse(context.Background(), userRequest("hi"))
		require.NoError(t, err)
	}
	m := r.GetMetrics("small")
	assert.EqualValues(t, 5, m.Requests)
	assert.Len(t, m.Latencies, 3)
}

func TestGetModelRecommendations_OpenModelBoost(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "closed", Capability: core.ModelClosed, MaxContextTokens: 100}))
	require.NoError(t, r.RegisterModel(core.ModelConfig{Name: "open", Capability: core.ModelOpen, MaxContextTokens: 100}))

	recs := r.GetModelRecommendations(userRequest("hi"))
	require.Len(t, recs, 2)
	assert.Equal(t, "open", recs[0].Model.Name)
	assert.InDelta(t, 105, recs[0].Score, 1e-9)
	assert.InDelta(t, 100, recs[1].Score, 1e-9)
}

func TestRateLimit_CountsRejections(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	r := newTestRouter(t, model.NewMockModel("mock", "mock"), func(o *Options) {
		o.RateLimit = RateLimit{Requests: 1, Window: time.Minute}
		o.Meter = provider.Meter("test")
	})
	_, err := r.GenerateResponse(context.Background(), userRequest("one"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = r.GenerateResponse(context.Background(), userRequest("again"))
		require.ErrorIs(t, err, core.ErrRateLimited)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "router.rate_limited" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.EqualValues(t, 2, total)
}
