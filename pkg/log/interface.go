// Package log provides structured logging for mlapi.
//
// The process-wide slog default is configured by SetupLogger. Packages obtain
// a Logger through GetLogger or GetLoggerWithName and attach the attribute
// keys defined in attributes.go:
//
//	logger := log.GetLoggerWithName("ml.trainer").With(log.DatasetIDKey, id)
//	logger.Info("Training completed",
//	    log.ModelIDKey, rec.ID,
//	    log.DurationMsKey, elapsed.Milliseconds(),
//	)
package log

import (
	"context"
	"log/slog"
)

// Logger defines a structured logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	// Error logs at error level. An error passed as the first field is
	// recorded under ErrAttrKey so that ErrFmtHandler can attach its stack.
	Error(msg string, fields ...any)
	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
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

// GetLogger returns a Logger backed by the current slog default.
func GetLogger() Logger {
	return &slogLogger{}
}

// GetLoggerWithName returns a Logger tagged with the given component name.
func GetLoggerWithName(name string) Logger {
	return &slogLogger{fields: []any{ComponentKey, name}}
}

// slogLogger resolves slog.Default at call time so that loggers created
// before SetupLogger still pick up the configured handler.
type slogLogger struct {
	fields []any
}

func (l *slogLogger) logger() *slog.Logger {
	if len(l.fields) == 0 {
		return slog.Default()
	}
	return slog.Default().With(l.fields...)
}

func (l *slogLogger) Debug(msg string, fields ...any) { l.logger().Debug(msg, fields...) }
func (l *slogLogger) Info(msg string, fields ...any)  { l.logger().Info(msg, fields...) }
func (l *slogLogger) Warn(msg string, fields ...any)  { l.logger().Warn(msg, fields...) }

func (l *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	l.logger().Error(msg, fields...)
}

func (l *slogLogger) With(fields ...any) Logger {
	merged := make([]any, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &slogLogger{fields: merged}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.logger().Enabled(ctx, slog.Level(level))
}
