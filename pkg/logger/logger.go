// Package logger provides a small structured logging facade over slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	callerSkipFrames = 2 // getCaller -> logging method -> actual caller
)

// Logger defines the logging interface.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field            { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val any) Field                { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

// Output formats accepted by SetFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type slogLogger struct {
	name string
}

// Named loggers resolve the handler lazily so SetFormat applies to loggers
// created before the switch.
func (l *slogLogger) Named(name string) Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &slogLogger{name: name}
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	base := current()
	if l.name != "" {
		base = base.WithGroup(l.name)
	}
	base.LogAttrs(ctx, level, msg, convertFields(fields)...)
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	fields = append(fields, String("source", getCaller()))
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	fields = append(fields, String("source", getCaller()))
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	fields = append(fields, String("source", getCaller()))
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	fields = append(fields, String("source", getCaller()))
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	fields = append(fields, String("source", getCaller()))
	l.log(ctx, slog.LevelError, msg, fields)
	os.Exit(1)
}

func convertFields(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

var (
	mu       sync.RWMutex
	global   Logger
	handler  *slog.Logger
	output   io.Writer = os.Stdout
	levelVar slog.LevelVar
)

// Init initializes the global logger with a text handler at info level.
func Init() error {
	levelVar.Set(slog.LevelInfo)
	mu.Lock()
	defer mu.Unlock()
	handler = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: &levelVar}))
	global = &slogLogger{}
	return nil
}

// SetOutput redirects log output. Call before Init or SetFormat.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

// SetFormat swaps the handler between text and JSON output.
func SetFormat(format string) error {
	opts := &slog.HandlerOptions{Level: &levelVar}
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		handler = slog.New(slog.NewTextHandler(output, opts))
	case FormatJSON:
		handler = slog.New(slog.NewJSONHandler(output, opts))
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	if global == nil {
		global = &slogLogger{}
	}
	return nil
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return handler
}

// getCaller returns the caller location as relative/path/file.go:line.
func getCaller() string {
	_, file, line, ok := runtime.Caller(callerSkipFrames)
	if !ok {
		return "unknown:0"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	relPath, err := filepath.Rel(cwd, file)
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	return fmt.Sprintf("%s:%d", relPath, line)
}

// Get returns the global logger.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		// The application must initialize logging explicitly.
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync flushes buffered log entries. slog does not buffer.
func Sync() error {
	return nil
}

// SetLevel updates the current logging level for the global logger handler.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		SetLevel(slog.LevelDebug)
	case "", "info":
		SetLevel(slog.LevelInfo)
	case "warn", "warning":
		SetLevel(slog.LevelWarn)
	case "error":
		SetLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}
