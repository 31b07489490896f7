// Package logging defines the Logger interface shared by every component and
// a slog-backed StructuredLogger.
//
// StructuredLogger scopes entries with WithComponent, WithAgent and WithTask
// and has helpers for task transitions, model calls and tool calls, so those
// entries carry the same keys wherever they are written. NoOpLogger is the
// default when no logger is configured.
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := orchestrator.New(func(o *orchestrator.Options) { o.Logger = logger.WithComponent("orchestrator") })
package logging
