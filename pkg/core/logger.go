package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Logger provides structured logging capabilities
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that attaches fields to every record
	WithFields(fields map[string]interface{}) Logger

	// WithContext returns a logger carrying the request and task IDs found in ctx
	WithContext(ctx context.Context) Logger
}

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Format is "text" (default) or "json".
	Format string
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// OmitTime drops the timestamp attribute (stable output for examples and tests).
	OmitTime bool
}

// slogLogger implements Logger on top of log/slog handlers
type slogLogger struct {
	l *slog.Logger
}

// NewDefaultLogger creates a text logger writing to stderr at info level
func NewDefaultLogger() Logger {
	return NewLogger(LoggerOptions{})
}

// NewLogger creates a logger from options.
func NewLogger(opts LoggerOptions) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.OmitTime {
		handlerOpts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	return &slogLogger{l: slog.New(h)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Error(args ...interface{}) { l.l.Error(fmt.Sprint(args...)) }

func (l *slogLogger) Errorf(format string, args ...interface{}) {
	l.l.Error(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Warn(args ...interface{}) { l.l.Warn(fmt.Sprint(args...)) }

func (l *slogLogger) Warnf(format string, args ...interface{}) {
	l.l.Warn(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Info(args ...interface{}) { l.l.Info(fmt.Sprint(args...)) }

func (l *slogLogger) Infof(format string, args ...interface{}) {
	l.l.Info(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Debug(args ...interface{}) { l.l.Debug(fmt.Sprint(args...)) }

func (l *slogLogger) Debugf(format string, args ...interface{}) {
	l.l.Debug(fmt.Sprintf(format, args...))
}

// WithFields attaches fields in key order so output is deterministic
func (l *slogLogger) WithFields(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return &slogLogger{l: l.l.With(attrs...)}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	fields := make(map[string]interface{}, 2)
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := GetTaskID(ctx); id != "" {
		fields["task_id"] = id
	}
	return l.WithFields(fields)
}
