package logger

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	atomicLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	globalLogger = New(atomicLevel)
)

// New builds a zap.Logger configured for console output at the given level.
// A nil level falls back to the package's shared atomic level, so callers can
// adjust verbosity later via SetLevel without rebuilding the logger.
func New(level zapcore.LevelEnabler) *zap.Logger {
	if level == nil {
		level = atomicLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(zapStderr())),
		level,
	)

	return zap.New(core)
}

// zapStderr is split out so tests can swap the sink without touching New's signature.
func zapStderr() zapcore.WriteSyncer {
	w, _, err := zap.Open("stderr")
	if err != nil {
		return zapcore.AddSync(zapcore.Lock(zapcore.AddSync(nil)))
	}

	return w
}

// ParseLogLevel parses a case-insensitive level name into a zapcore.Level.
// The second return value is false when the input does not name a known level,
// in which case the returned level is zapcore.InfoLevel.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	var level zapcore.Level

	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, false
	}

	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return zapcore.InfoLevel, false
	}

	return level, true
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return globalLogger
}

// SetLogger replaces the process-wide logger, e.g. to inject a test sink.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger = l
}

// Level returns the current minimum level the process-wide logger emits at.
func Level() zapcore.Level {
	return atomicLevel.Level()
}

// SetLevel adjusts the process-wide logger's minimum level without rebuilding it.
func SetLevel(level zapcore.Level) {
	atomicLevel.SetLevel(level)
}

// ctxFields extracts structured fields attached to ctx, if any, for correlation
// across a single get/dispatch call (e.g. the file path being parsed).
func ctxFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}

	if v, ok := ctx.Value(fieldsKey{}).([]zap.Field); ok {
		return v
	}

	return nil
}

type fieldsKey struct{}

// WithFields returns a child context carrying structured fields that every
// subsequent context-based log call on it will include automatically.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, fieldsKey{}, append(ctxFields(ctx), fields...))
}

func Debug(ctx context.Context, msg string)  { Logger().Debug(msg, ctxFields(ctx)...) }
func Info(ctx context.Context, msg string)   { Logger().Info(msg, ctxFields(ctx)...) }
func Warn(ctx context.Context, msg string)   { Logger().Warn(msg, ctxFields(ctx)...) }
func Error(ctx context.Context, msg string)  { Logger().Error(msg, ctxFields(ctx)...) }
func Fatal(ctx context.Context, msg string)  { Logger().Fatal(msg, ctxFields(ctx)...) }
func Panic(ctx context.Context, msg string)  { Logger().Panic(msg, ctxFields(ctx)...) }

func Debugf(ctx context.Context, format string, args ...interface{}) {
	Logger().Sugar().Debugf(withFieldPrefix(ctx, format), args...)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	Logger().Sugar().Infof(withFieldPrefix(ctx, format), args...)
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	Logger().Sugar().Warnf(withFieldPrefix(ctx, format), args...)
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	Logger().Sugar().Errorf(withFieldPrefix(ctx, format), args...)
}

func Fatalf(ctx context.Context, format string, args ...interface{}) {
	Logger().Sugar().Fatalf(withFieldPrefix(ctx, format), args...)
}

// withFieldPrefix returns format unchanged whether or not ctx carries
// WithFields values: the printf-style helpers do not include context fields
// in their output (the plain and *KV helpers do).
func withFieldPrefix(ctx context.Context, format string) string {
	fields := ctxFields(ctx)
	if len(fields) == 0 {
		return format
	}

	return format
}

func DebugKV(ctx context.Context, msg string, keysAndValues ...interface{}) {
	Logger().Sugar().Debugw(msg, append(kvToArgs(ctx), keysAndValues...)...)
}

func InfoKV(ctx context.Context, msg string, keysAndValues ...interface{}) {
	Logger().Sugar().Infow(msg, append(kvToArgs(ctx), keysAndValues...)...)
}

func WarnKV(ctx context.Context, msg string, keysAndValues ...interface{}) {
	Logger().Sugar().Warnw(msg, append(kvToArgs(ctx), keysAndValues...)...)
}

func ErrorKV(ctx context.Context, msg string, keysAndValues ...interface{}) {
	Logger().Sugar().Errorw(msg, append(kvToArgs(ctx), keysAndValues...)...)
}

func kvToArgs(ctx context.Context) []interface{} {
	fields := ctxFields(ctx)
	if len(fields) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.String)
	}

	return args
}
