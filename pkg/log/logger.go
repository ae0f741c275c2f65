package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// SetupLogger configures the process-wide slog default and routes library
// warnings (errors.Warn) to a zerolog logger on the same writer.
// format is "json" (Cloud Logging key names) or "text". A nil writer means stdout.
func SetupLogger(loglevel, format string, w io.Writer) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			case slog.SourceKey:
				attr.Key = "logging.googleapis.com/sourceLocation"
			}
			return attr
		},
	}

	var handler slog.Handler
	switch format {
	case "", "json":
		handler = slog.NewJSONHandler(w, &ops)
	case "text":
		handler = slog.NewTextHandler(w, &ops)
	default:
		return errors.NewValidationError("log.format", "must be json or text", format)
	}
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	errors.SetZerologWarnFunc(NewWarnSink(w, loglevel))
	return nil
}

// NewWarnSink returns a warning function writing zerolog JSON lines.
// Warnings implementing zerolog.LogObjectMarshaler contribute their fields.
func NewWarnSink(w io.Writer, loglevel string) func(error) {
	zlevel, err := zerolog.ParseLevel(loglevel)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	zl := zerolog.New(w).Level(zlevel).With().Timestamp().Str(ComponentKey, "warnings").Logger()
	return func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
