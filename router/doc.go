// Package router selects a backend model for each generation request and
// wraps the call with the engine's reliability policy.
//
// A Router keeps a registry of core.ModelConfig entries (in registration
// order) and the model.Model backends serving them. GenerateResponse runs the
// following pipeline:
//
//  1. Sliding-window rate limit, keyed by the requested (or default) model.
//     A full window is rejected with a RATE_LIMITED error; the router never
//     retries it.
//  2. Greedy first-fit model selection (SelectModel): start from the requested
//     or default model, switch to the first registered model whose context is
//     large enough, then to the first whose estimated cost keeps the running
//     total within budget. The result is deliberately not globally optimal;
//     first-fit keeps selection cheap and predictable.
//  3. Up to Config.MaxRetries attempts, each raced against Config.Timeout,
//     with exponential backoff (doubling, capped at MaxBackoff) in between.
//     Configured fallback models get a single attempt each afterwards.
//  4. Metrics: request and error counts, cumulative tokens and cost, and a
//     bounded latency sample per model, mirrored to OpenTelemetry.
//
// Batches run in fixed-size concurrent groups and replace failed members with
// an error response. Streaming refuses models without streaming support.
// GetModelRecommendations is a read-only scoring aid that never influences
// selection.
package router
