package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across the service.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	// WithContext adds the request ID, tenant and active span of ctx.
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a structured log field.
type Field = zap.Field

// Field constructors.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
)

// ErrLevelFixed is returned by SetLogLevel for loggers whose level cannot
// change at runtime.
var ErrLevelFixed = errors.New("logger level cannot be changed")

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path.
	Output string
}

// DefaultLogConfig returns JSON logging at info level to stdout.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json", Output: "stdout"}
}

type zapLogger struct {
	logger *zap.Logger
	// level is shared by every logger derived through With.
	level *zap.AtomicLevel
}

// NewLogger builds a zap backed logger.
func NewLogger(cfg LogConfig) (Logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	sink, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(lvl)
	core := zapcore.NewCore(encoder, sink, level)
	return &zapLogger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level:  &level,
	}, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	switch strings.ToLower(format) {
	case "", "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("unsupported log format %q", format)
}

func openOutput(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	ws, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", output, err)
	}
	return ws, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(level)
}

// SetLogLevel changes the level of logger and every logger derived from it.
func SetLogLevel(logger Logger, level string) error {
	zl, ok := logger.(*zapLogger)
	if !ok || zl.level == nil {
		return ErrLevelFixed
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	zl.level.SetLevel(lvl)
	return nil
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.logger.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.logger.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.logger.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.logger.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error                       { return l.logger.Sync() }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...), level: l.level}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// requestScope is what the request middleware learns about a request.
type requestScope struct {
	requestID string
	tenant    string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) requestScope {
	s, _ := ctx.Value(scopeKey{}).(requestScope)
	return s
}

func contextFields(ctx context.Context) []Field {
	var fields []Field
	s := scopeFrom(ctx)
	if s.requestID != "" {
		fields = append(fields, String("request_id", s.requestID))
	}
	if s.tenant != "" {
		fields = append(fields, String("tenant", s.tenant))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			String("trace_id", sc.TraceID().String()),
			String("span_id", sc.SpanID().String()),
		)
	}
	return fields
}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	s := scopeFrom(ctx)
	s.requestID = requestID
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestIDFromContext returns the request ID stored in ctx.
func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// ContextWithTenant stores the tenant of the request in ctx.
func ContextWithTenant(ctx context.Context, tenant string) context.Context {
	s := scopeFrom(ctx)
	s.tenant = tenant
	return context.WithValue(ctx, scopeKey{}, s)
}

// TenantFromContext returns the tenant stored in ctx.
func TenantFromContext(ctx context.Context) string {
	return scopeFrom(ctx).tenant
}

var (
	globalLogger atomic.Pointer[Logger]

	fallbackLogger = sync.OnceValue(func() Logger {
		logger, err := NewLogger(LogConfig{Output: "stderr"})
		if err != nil {
			return NopLogger()
		}
		return logger
	})
)

// SetGlobalLogger sets the logger returned by GetGlobalLogger.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(nil)
		return
	}
	globalLogger.Store(&logger)
}

// GetGlobalLogger returns the global logger. Before SetGlobalLogger is
// called it is a JSON logger writing to stderr.
func GetGlobalLogger() Logger {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	return fallbackLogger()
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

// NewLoggerFromZap wraps an existing zap logger.
func NewLoggerFromZap(logger *zap.Logger) Logger {
	if logger == nil {
		return NopLogger()
	}
	return &zapLogger{logger: logger}
}
