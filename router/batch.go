package router

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ErrorResponse is the sentinel placed in a batch for a failed member.
func ErrorResponse(req Request, err error) Response {
	return Response{Model: req.Model, FinishReason: "error", Error: err.Error()}
}

// GenerateBatchResponses processes requests in groups of Config.BatchSize.
// Members of a group run concurrently; groups run one after another. The
// output has one entry per request in input order, failures replaced by
// ErrorResponse sentinels.
func (r *Router) GenerateBatchResponses(ctx context.Context, reqs []Request) []Response {
	out := make([]Response, len(reqs))
	size := r.opts.BatchSize

	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))

		// Members fail independently, so the group is not bound to a shared
		// cancelling context.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				resp, err := r.GenerateResponse(ctx, reqs[i])
				if err != nil {
					out[i] = ErrorResponse(reqs[i], err)
					return nil
				}
				out[i] = *resp
				return nil
			})
		}
		_ = g.Wait()

		r.opts.Logger.Debug("router.batch.group", "start", start, "end", end, "total", len(reqs))
	}
	return out
}
