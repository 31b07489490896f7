package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is the configured verbosity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLevel maps a configuration string (debug, info, warn, error) to a
// LogLevel. Unknown values fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) String() string {
	return l.slog().String()
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the logging surface every component depends on. Args are
// slog-style key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	Attrs     map[string]any
}

// DefaultLoggerConfig returns JSON at info level on stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// StructuredLogger is a slog-backed Logger with scoping for components,
// agents and tasks, plus helpers for the events every component reports.
// Scoping returns a new logger and leaves the receiver untouched.
type StructuredLogger struct {
	logger *slog.Logger
}

var _ Logger = (*StructuredLogger)(nil)

// NewLogger builds a StructuredLogger; a nil config means defaults.
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With(slog.String("component", cfg.Component))
	}
	for k, v := range cfg.Attrs {
		logger = logger.With(slog.Any(k, v))
	}
	return &StructuredLogger{logger: logger}
}

// NewSlogLogger is shorthand for NewLogger with level, format and source
// settings.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StructuredLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

// NewSlogAdapter wraps an existing slog logger; its handler decides level and
// format.
func NewSlogAdapter(logger *slog.Logger) *StructuredLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredLogger{logger: logger}
}

// Slog exposes the underlying logger.
func (l *StructuredLogger) Slog() *slog.Logger { return l.logger }

func (l *StructuredLogger) with(args ...any) *StructuredLogger {
	return &StructuredLogger{logger: l.logger.With(args...)}
}

// WithComponent scopes entries to a component (orchestrator, router, ...).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	return l.with("component", c)
}

// WithContext attaches one key/value pair to every entry.
func (l *StructuredLogger) WithContext(key string, value any) *StructuredLogger {
	return l.with(key, value)
}

// WithAgent scopes entries to an agent id.
func (l *StructuredLogger) WithAgent(agentID string) *StructuredLogger {
	return l.with("agent_id", agentID)
}

// WithTask scopes entries to a task and the agent running it.
func (l *StructuredLogger) WithTask(taskID, agentID string) *StructuredLogger {
	return l.with("task_id", taskID, "agent_id", agentID)
}

func (l *StructuredLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *StructuredLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *StructuredLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *StructuredLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// LogToolCall records one tool execution. Failures log at warn.
func (l *StructuredLogger) LogToolCall(tool string, dur time.Duration, err error) {
	attrs := []slog.Attr{slog.String("tool", tool), slog.Duration("duration", dur)}
	if err != nil {
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "tool.call.failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "tool.call.completed", attrs...)
}

// LogModelCall records one model request with its token usage and cost.
// Failures log at warn.
func (l *StructuredLogger) LogModelCall(model string, tokens int, cost float64, dur time.Duration, err error) {
	attrs := []slog.Attr{slog.String("model", model), slog.Duration("latency", dur)}
	if err != nil {
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "model.call.failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	attrs = append(attrs, slog.Int("tokens", tokens), slog.Float64("cost", cost))
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "model.call.completed", attrs...)
}

// LogTaskTransition records a task status change. A non-nil err raises the
// entry to warn.
func (l *StructuredLogger) LogTaskTransition(taskID, from, to string, attempt int, err error) {
	attrs := []slog.Attr{
		slog.String("task_id", taskID),
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("attempt", attempt),
	}
	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(context.Background(), level, "task.transition", attrs...)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}
