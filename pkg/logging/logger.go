// Package logging writes structured JSON log lines tagged with service,
// request and ingestion-run identifiers.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int32

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to info
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
)

// WithRequestID stores a request id on the context for log correlation
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored on the context, if any
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithRunID stores an ingestion run id on the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the ingestion run id stored on the context, if any
func RunID(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// LogEntry is one JSON log line
type LogEntry struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      string                 `json:"level"`
	Service    string                 `json:"service"`
	Version    string                 `json:"version"`
	Hostname   string                 `json:"hostname"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	RunID      string                 `json:"run_id,omitempty"`
	File       string                 `json:"file,omitempty"`
	Line       int                    `json:"line,omitempty"`
	Function   string                 `json:"function,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
}

// StructuredLogger provides structured JSON logging with context
type StructuredLogger struct {
	level    atomic.Int32
	mu       sync.Mutex
	output   io.Writer
	service  string
	version  string
	hostname string
	now      func() time.Time
	exit     func(int)
}

// NewStructuredLogger creates a logger writing JSON lines to stdout
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	hostname, _ := os.Hostname()

	l := &StructuredLogger{
		output:   os.Stdout,
		service:  service,
		version:  version,
		hostname: hostname,
		now:      time.Now,
		exit:     os.Exit,
	}
	l.level.Store(int32(level))
	return l
}

// NewNopLogger returns a logger that discards everything, for tests
func NewNopLogger() *StructuredLogger {
	l := NewStructuredLogger("test", "test", FatalLevel+1)
	l.SetOutput(io.Discard)
	return l
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Enabled reports whether messages at level are written
func (l *StructuredLogger) Enabled(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, DebugLevel, message, fields, nil)
}

func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, InfoLevel, message, fields, nil)
}

func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, WarnLevel, message, fields, nil)
}

// Error logs err with the caller's file, line and function
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs with a stack trace and exits the process
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, FatalLevel, message, fields, err)
	l.exit(1)
}

// emit must be called directly from a public logging method so the caller
// frame is three levels up.
func (l *StructuredLogger) emit(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().UTC(),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Hostname:  l.hostname,
		Message:   message,
		Fields:    fields,
		RequestID: RequestID(ctx),
		RunID:     RunID(ctx),
	}

	if level >= ErrorLevel {
		if pc, file, line, ok := runtime.Caller(2); ok {
			entry.File = file
			entry.Line = line
			if fn := runtime.FuncForPC(pc); fn != nil {
				entry.Function = fn.Name()
			}
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if level == FatalLevel {
			buf := make([]byte, 4096)
			entry.StackTrace = string(buf[:runtime.Stack(buf, false)])
		}
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		// fields held something json cannot encode
		entry.Fields = Fields{"unencodable_fields": fmt.Sprintf("%v", fields)}
		data, _ = json.Marshal(entry)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(data)
}

// WithFields returns a logger that adds fields to every entry
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{logger: l, fields: maps.Clone(fields)}
}

// ContextLogger wraps StructuredLogger with fixed fields. Per-call fields win
// on key collisions.
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

// WithFields returns a logger carrying both sets of fields
func (c *ContextLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{logger: c.logger, fields: c.merge(fields)}
}

func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, DebugLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, InfoLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, WarnLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.emit(ctx, ErrorLevel, message, c.merge(fields), err)
}

func (c *ContextLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	c.logger.emit(ctx, FatalLevel, message, c.merge(fields), err)
	c.logger.exit(1)
}

func (c *ContextLogger) merge(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))
	maps.Copy(merged, c.fields)
	maps.Copy(merged, fields)
	return merged
}
