package router

import (
	"context"
	"fmt"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/model"
)

// StreamChunk is one element of a streaming response. Delta chunks carry text;
// the last chunk has Done set and either Response or Err.
type StreamChunk struct {
	Delta    string
	Done     bool
	Response *Response
	Err      error
}

// GenerateStreamingResponse routes a request to a streaming-capable model and
// forwards text deltas as they arrive. Streaming calls are not retried since
// part of the output may already have been consumed.
func (r *Router) GenerateStreamingResponse(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	const op = "router.GenerateStreamingResponse"
	if len(req.Messages) == 0 {
		return nil, core.NewValidationError(op, "request has no messages")
	}
	if err := r.admit(op, req); err != nil {
		return nil, err
	}
	cfg, err := r.SelectModel(req)
	if err != nil {
		return nil, err
	}
	if !cfg.SupportsStreaming {
		return nil, core.NewValidationError(op, fmt.Sprintf("model %s does not support streaming", cfg.Name))
	}
	backend, err := r.backendFor(cfg.Name)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)

		actx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		start := time.Now()
		respCh, errCh := backend.Generate(actx, r.modelRequest(cfg, req, true))
		final, err := model.Collect(actx, respCh, errCh, func(p model.Response) {
			select {
			case out <- StreamChunk{Delta: p.Text}:
			case <-actx.Done():
			}
		})
		latency := time.Since(start)
		if err != nil {
			err = r.classify(ctx, actx, op, err)
			r.recordFailure(ctx, cfg.Name, latency, err)
			send(ctx, out, StreamChunk{Done: true, Err: err})
			return
		}
		resp := r.finish(cfg, req, final, latency)
		r.recordSuccess(ctx, resp)
		send(ctx, out, StreamChunk{Done: true, Response: resp})
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- StreamChunk, c StreamChunk) {
	select {
	case out <- c:
	case <-ctx.Done():
	}
}
