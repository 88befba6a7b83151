// Package logging provides the structured logger used across the service.
// It wraps logrus with trace-ID propagation so every log line emitted while
// handling a request can be correlated.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey carries the request trace ID through a context.
	TraceIDKey contextKey = "trace_id"
	// CaptureKey carries the resolved capture name through a context.
	CaptureKey contextKey = "capture"
	// UserKey carries the authenticated username through a context.
	UserKey contextKey = "user"
)

// Logger wraps a logrus logger with a fixed component field.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the named component. Debug enables debug-level
// output.
func New(component string, debug bool) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	if debug {
		base.SetLevel(logrus.DebugLevel)
	}
	return &Logger{entry: base.WithField("component", component)}
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.PanicLevel)
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithContext attaches the trace ID, capture name and user from ctx, when
// present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	entry := l.entry
	if id := GetTraceID(ctx); id != "" {
		entry = entry.WithField("trace_id", id)
	}
	if capture, ok := ctx.Value(CaptureKey).(string); ok && capture != "" {
		entry = entry.WithField("capture", capture)
	}
	if user, ok := ctx.Value(UserKey).(string); ok && user != "" {
		entry = entry.WithField("user", user)
	}
	return &Logger{entry: entry}
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// WithField attaches a single structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields attaches a set of structured fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...any) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID extracts the trace ID from ctx, or "" when absent.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}
