// Package logger builds the process-wide slog.Logger and carries it
// through context. It also holds attribute helpers so that field names
// stay consistent across packages.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseLevel maps a config string to a slog level. Unknown values give Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps a config string to a Format. Unknown values give text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Options configure New.
type Options struct {
	Level     slog.Level
	Format    Format
	Output    io.Writer
	AddSource bool

	// Static attributes added to every record, e.g. service name.
	Attrs []slog.Attr
}

// New creates a logger. JSON in production, text for local runs.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	if len(opts.Attrs) > 0 {
		handler = handler.WithAttrs(opts.Attrs)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Field helpers.
func StudentID(id int64) slog.Attr        { return slog.Int64("student_id", id) }
func RequestID(id string) slog.Attr       { return slog.String("request_id", id) }
func Component(name string) slog.Attr     { return slog.String("component", name) }
func Operation(name string) slog.Attr     { return slog.String("operation", name) }
func Grade(v int) slog.Attr               { return slog.Int("grade", v) }
func Latency(d time.Duration) slog.Attr   { return slog.Duration("latency", d) }
func WinnerCount(n int) slog.Attr         { return slog.Int("winners", n) }
func StoreDriver(driver string) slog.Attr { return slog.String("store", driver) }

// Err returns an "error" attribute; nil errors produce an empty value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
