package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger writes structured entries.
//
// Implementations are safe for concurrent use and never panic on a bad
// field value.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	WithArtifact(meta ArtifactMeta) Logger
}

// Field is one key/value pair on a log entry.
type Field struct {
	Key   string
	Value any
}

// LogLevel orders log entries by severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "info"
	}
	return levelNames[l]
}

func lookupLevel(s string) (LogLevel, bool) {
	if s == "" {
		return LevelInfo, true
	}
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// ParseLogLevel returns the level named s, or LevelInfo when unknown.
func ParseLogLevel(s string) LogLevel {
	l, _ := lookupLevel(s)
	return l
}

// RedactedFields lists field keys whose values are never written.
// Matching ignores case.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"authorization",
	"credential",
}

func redacted(key string) bool {
	for _, k := range RedactedFields {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// jsonLogger writes one JSON object per line. Entries logged under an
// active span carry trace_id and span_id.
type jsonLogger struct {
	min   LogLevel
	out   io.Writer
	mu    *sync.Mutex
	bound map[string]any
	now   func() time.Time
}

// NewLogger returns a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger writing to w. A nil w means
// stderr.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &jsonLogger{
		min: ParseLogLevel(level),
		out: w,
		mu:  &sync.Mutex{},
		now: time.Now,
	}
}

// WithArtifact binds the artifact identity to every later entry. Empty
// request fields are left out.
func (l *jsonLogger) WithArtifact(meta ArtifactMeta) Logger {
	bound := maps.Clone(l.bound)
	if bound == nil {
		bound = make(map[string]any, 5)
	}
	bound["artifact.kind"] = meta.Kind
	for key, v := range map[string]string{
		"artifact.location":    meta.Location,
		"artifact.crop":        meta.Crop,
		"artifact.sowing_date": meta.SowingDate,
		"run.id":               meta.RunID,
	} {
		if v != "" {
			bound[key] = v
		}
	}
	child := *l
	child.bound = bound
	return &child
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, LevelDebug, msg, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, LevelError, msg, fields)
}

func (l *jsonLogger) write(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.min {
		return
	}

	entry := make(map[string]any, len(l.bound)+len(fields)+5)
	maps.Copy(entry, l.bound)
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			entry[f.Key] = v.Error()
		default:
			entry[f.Key] = v
		}
		if redacted(f.Key) {
			entry[f.Key] = "[REDACTED]"
		}
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			entry["trace_id"] = sc.TraceID().String()
			entry["span_id"] = sc.SpanID().String()
		}
	}
	entry["timestamp"] = l.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

type noopLogger struct{}

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (n noopLogger) WithArtifact(ArtifactMeta) Logger      { return n }

var (
	_ Logger = (*jsonLogger)(nil)
	_ Logger = noopLogger{}
)
