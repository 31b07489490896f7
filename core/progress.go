package core

import "context"

// ProgressFunc receives progress reports from a running task.
type ProgressFunc func(percent int, message string)

type progressKey struct{}

// WithProgress attaches a progress reporter to ctx.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress forwards a report to the reporter in ctx, if any. Percent is
// clamped to [0, 100].
func ReportProgress(ctx context.Context, percent int, message string) {
	fn, ok := ctx.Value(progressKey{}).(ProgressFunc)
	if !ok || fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	fn(percent, message)
}
