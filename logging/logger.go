package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface for LangSwarm.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Config configures construction of a *slog.Logger.
type Config struct {
	Level     LogLevel
	Format    string // json, text or console
	Output    io.Writer
	AddSource bool
	// Component is attached to every record when set.
	Component string
}

// DefaultConfig returns a baseline JSON info level configuration.
func DefaultConfig() *Config {
	return &Config{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a *slog.Logger from a config (or defaults if nil).
// The console format renders colored, human friendly output via tint.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	switch cfg.Format {
	case "console":
		handler = tint.NewHandler(out, &tint.Options{
			Level:      slogLevel(cfg.Level),
			AddSource:  cfg.AddSource,
			TimeFormat: time.TimeOnly,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	case "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With(slog.String("component", cfg.Component))
	}
	return logger
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// LogToolCall records execution details for a tool invocation.
func LogToolCall(l Logger, tool, callID string, dur time.Duration, err error) {
	if err != nil {
		l.Error("tool.call.failed", "tool", tool, "call_id", callID, "duration", dur, "error", err)
		return
	}
	l.Debug("tool.call.success", "tool", tool, "call_id", callID, "duration", dur)
}

// LogLLMCall records model call latency and outcome for one provider round.
func LogLLMCall(l Logger, model string, round int, dur time.Duration, err error) {
	if err != nil {
		l.Error("llm.call.failed", "model", model, "round", round, "duration", dur, "error", err)
		return
	}
	l.Debug("llm.call.completed", "model", model, "round", round, "duration", dur)
}

// LogWorkflowExecution records aggregate workflow run metrics.
func LogWorkflowExecution(l Logger, workflowID, executionID string, steps int, dur time.Duration, err error) {
	if err != nil {
		l.Error("engine.workflow.failed", "workflow", workflowID, "execution_id", executionID, "step_count", steps, "duration", dur, "error", err)
		return
	}
	l.Info("engine.workflow.completed", "workflow", workflowID, "execution_id", executionID, "step_count", steps, "duration", dur)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
