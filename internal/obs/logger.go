package obs

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a minimal logging interface for observability.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Logf(level Level, format string, args ...interface{}) {}

// StdLogger adapts the standard library logger.
type StdLogger struct {
	L    *log.Logger
	Min  Level
	Pref string // optional prefix per log line
}

func (s StdLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil {
		return
	}
	if level < s.Min {
		return
	}
	if s.Pref != "" {
		s.L.Printf("%s[%s] "+format, append([]interface{}{s.Pref, level.String()}, args...)...)
	} else {
		s.L.Printf("[%s] "+format, append([]interface{}{level.String()}, args...)...)
	}
}

// SlogLogger adapts a *slog.Logger. Attrs are added to every record.
type SlogLogger struct {
	L     *slog.Logger
	Attrs []slog.Attr
}

func (s SlogLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil {
		return
	}
	lv := slogLevel(level)
	ctx := context.Background()
	if !s.L.Enabled(ctx, lv) {
		return
	}
	s.L.LogAttrs(ctx, lv, fmt.Sprintf(format, args...), s.Attrs...)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewOTelLogger returns a Logger emitting OpenTelemetry log records
// through provider. A nil provider uses the global one.
func NewOTelLogger(name string, provider otellog.LoggerProvider) Logger {
	var opts []otelslog.Option
	if provider != nil {
		opts = append(opts, otelslog.WithLoggerProvider(provider))
	}
	return SlogLogger{L: otelslog.NewLogger(name, opts...)}
}

// ZerologLogger adapts a zerolog.Logger.
type ZerologLogger struct {
	L zerolog.Logger
}

func (z ZerologLogger) Logf(level Level, format string, args ...interface{}) {
	var ev *zerolog.Event
	switch level {
	case Debug:
		ev = z.L.Debug()
	case Warn:
		ev = z.L.Warn()
	case Error:
		ev = z.L.Error()
	default:
		ev = z.L.Info()
	}
	ev.Msgf(format, args...)
}

// Multi fans a record out to every logger.
type Multi []Logger

func (m Multi) Logf(level Level, format string, args ...interface{}) {
	for _, l := range m {
		if l != nil {
			l.Logf(level, format, args...)
		}
	}
}

// OrNop returns l, or NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
