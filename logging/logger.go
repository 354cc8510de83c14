// Package logging provides a tiny abstraction over slog and hclog so downstream
// code can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Level is a thin enum for user friendly level configuration decoupled from
// the concrete backends.
type Level int

const (
	// LevelDebug is the debug logging level.
	LevelDebug Level = iota
	// LevelInfo is the informational logging level.
	LevelInfo
	// LevelWarn is the warning logging level.
	LevelWarn
	// LevelError is the error logging level.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used throughout agentbridge.
// Args are alternating key/value pairs.
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

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// HCLogAdapter wraps an hclog.Logger to implement the Logger interface.
type HCLogAdapter struct {
	hclog.Logger
}

// NewHCLogAdapter creates a Logger from an hclog.Logger.
func NewHCLogAdapter(logger hclog.Logger) Logger {
	return &HCLogAdapter{Logger: logger}
}

// Debug logs a debug message.
func (h *HCLogAdapter) Debug(msg string, args ...any) { h.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (h *HCLogAdapter) Info(msg string, args ...any) { h.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (h *HCLogAdapter) Warn(msg string, args ...any) { h.Logger.Warn(msg, args...) }

// Error logs an error message.
func (h *HCLogAdapter) Error(msg string, args ...any) { h.Logger.Error(msg, args...) }

// Config configures construction of a Logger via New.
type Config struct {
	Level     Level
	Format    string // json or text
	Backend   string // slog or hclog
	Name      string // component name attached to every entry
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns a baseline JSON info level slog configuration writing to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "json", Backend: "slog", Output: os.Stderr}
}

// New builds a Logger for the configured backend.
func New(cfg Config) Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	if cfg.Backend == "hclog" {
		return NewHCLogAdapter(hclog.New(&hclog.LoggerOptions{
			Name:            cfg.Name,
			Level:           hclogLevel(cfg.Level),
			Output:          cfg.Output,
			JSONFormat:      cfg.Format == "json",
			IncludeLocation: cfg.AddSource,
		}))
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	l := slog.New(handler)
	if cfg.Name != "" {
		l = l.With("component", cfg.Name)
	}

	return NewSlogAdapter(l)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func hclogLevel(l Level) hclog.Level {
	switch l {
	case LevelDebug:
		return hclog.Debug
	case LevelWarn:
		return hclog.Warn
	case LevelError:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// With returns a Logger that attaches the given key/value pairs to every
// entry. Loggers that cannot carry attributes are wrapped.
func With(l Logger, args ...any) Logger {
	switch v := l.(type) {
	case *SlogAdapter:
		return &SlogAdapter{Logger: v.Logger.With(args...)}
	case *HCLogAdapter:
		return &HCLogAdapter{Logger: v.Logger.With(args...)}
	case NoOpLogger:
		return v
	case nil:
		return NoOpLogger{}
	default:
		return &withLogger{next: l, args: args}
	}
}

type withLogger struct {
	next Logger
	args []any
}

func (w *withLogger) merge(args []any) []any {
	out := make([]any, 0, len(w.args)+len(args))
	out = append(out, w.args...)
	return append(out, args...)
}

func (w *withLogger) Debug(msg string, args ...any) { w.next.Debug(msg, w.merge(args)...) }
func (w *withLogger) Info(msg string, args ...any)  { w.next.Info(msg, w.merge(args)...) }
func (w *withLogger) Warn(msg string, args ...any)  { w.next.Warn(msg, w.merge(args)...) }
func (w *withLogger) Error(msg string, args ...any) { w.next.Error(msg, w.merge(args)...) }

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

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
