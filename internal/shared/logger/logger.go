package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// Logger wraps slog.Logger with domain-specific helpers while staying thin
type Logger struct {
	*slog.Logger
	config Config
}

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// OutputFormat represents the log output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Config holds configuration for the logger
type Config struct {
	Level      LogLevel     `mapstructure:"level" yaml:"level" json:"level"`
	Format     OutputFormat `mapstructure:"format" yaml:"format" json:"format"`
	AddSource  bool         `mapstructure:"add_source" yaml:"add_source" json:"add_source"`
	Component  string       `mapstructure:"component" yaml:"component" json:"component"`
	Version    string       `mapstructure:"version" yaml:"version" json:"version"`
	TimeFormat string       `mapstructure:"time_format" yaml:"time_format" json:"time_format"`
}

// New creates a new logger with the provided configuration
func New(config Config) *Logger {
	level := parseLogLevel(config.Level)
	handler := createHandler(config, level)

	return &Logger{
		Logger: slog.New(handler),
		config: config,
	}
}

// NewDevelopment creates a logger optimized for development
func NewDevelopment(component string) *Logger {
	return New(Config{
		Level:      LevelDebug,
		Format:     FormatText,
		AddSource:  true,
		Component:  component,
		Version:    "dev",
		TimeFormat: time.Kitchen,
	})
}

// NewProduction creates a logger optimized for production
func NewProduction(component, version string) *Logger {
	return New(Config{
		Level:      LevelInfo,
		Format:     FormatJSON,
		AddSource:  false,
		Component:  component,
		Version:    version,
		TimeFormat: time.RFC3339,
	})
}

// Context keys for structured logging
type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	AllocationIDKey contextKey = "allocation_id"
	VPCKey          contextKey = "vpc"
	OperationKey    contextKey = "operation"
)

// With returns a new logger with additional attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithContext extracts logging context and returns a scoped logger
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := extractContextAttrs(ctx)
	attrs = append(attrs, slog.String("component", l.config.Component))

	return &Logger{
		Logger: l.Logger.With(attrsToAny(attrs)...),
		config: l.config,
	}
}

// Unwrap returns the underlying slog.Logger for direct access
func (l *Logger) Unwrap() *slog.Logger {
	return l.Logger
}

// ErrorCtx logs an error with automatic context enrichment, pulling domain,
// code and metadata out of DomainErrors.
func (l *Logger) ErrorCtx(ctx context.Context, msg string, err error, args ...any) {
	attrs := []any{slog.String("error", err.Error())}

	if domainErr, ok := err.(errors.DomainError); ok {
		attrs = append(attrs,
			slog.String("error_domain", domainErr.Domain()),
			slog.String("error_code", domainErr.Code()),
			slog.Bool("retryable", domainErr.Retryable()),
		)

		for k, v := range domainErr.Metadata() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	attrs = append(attrs, args...)
	l.WithContext(ctx).Error(msg, attrs...)
}

// HTTPRequest logs HTTP request/response with smart level selection
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, args ...any) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}

	attrs := []any{
		slog.String("http_method", method),
		slog.String("http_path", path),
		slog.Int("http_status", status),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	msg := fmt.Sprintf("%s %s %d", method, path, status)
	l.WithContext(ctx).Log(ctx, level, msg, attrs...)
}

// DBQuery logs database operations with slow query detection
func (l *Logger) DBQuery(ctx context.Context, operation, table string, duration time.Duration, args ...any) {
	attrs := []any{
		slog.String("db_operation", operation),
		slog.String("db_table", table),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	msg := fmt.Sprintf("%s %s", operation, table)

	if duration > 100*time.Millisecond {
		l.WithContext(ctx).Warn(msg+" (slow)", attrs...)
	} else {
		l.WithContext(ctx).Debug(msg, attrs...)
	}
}

// Helper functions

func parseLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createHandler(config Config, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	switch config.Format {
	case FormatText:
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: config.TimeFormat,
			AddSource:  config.AddSource,
		})
	default:
		return slog.NewJSONHandler(os.Stdout, opts)
	}
}

func extractContextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	contextKeys := []contextKey{RequestIDKey, AllocationIDKey, VPCKey, OperationKey}
	for _, key := range contextKeys {
		if val, ok := ctx.Value(key).(string); ok && val != "" {
			attrs = append(attrs, slog.String(string(key), val))
		}
	}

	return attrs
}

func attrsToAny(attrs []slog.Attr) []any {
	result := make([]any, len(attrs))
	for i, attr := range attrs {
		result[i] = attr
	}
	return result
}

// Context helper functions

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithAllocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, AllocationIDKey, id)
}

func WithVPC(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, VPCKey, name)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}
