package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
)

// InitLogger configures the default logger: JSON on stderr, plus an
// optional JSON file sink. Stdout stays free for reports.
func InitLogger(debug bool, logFile string) {
	slog.SetDefault(NewLogger(os.Stderr, debug, logFile))
}

// NewLogger builds a JSON logger writing to console (when non-nil) and to
// logFile (when non-empty). With neither, records are discarded.
func NewLogger(console io.Writer, debug bool, logFile string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if console != nil {
		handlers = append(handlers, slog.NewJSONHandler(console, opts))
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		} else {
			slog.Error("Failed to open log file", "path", logFile, "error", err)
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewJSONHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = fanout(handlers)
	}
	return slog.New(handler)
}

// fanout sends each record to every handler that accepts its level. A
// failing sink does not keep the record from the others.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(derive func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = derive(h)
	}
	return out
}

func logAt(level slog.Level, msg string, args ...any) {
	slog.Default().Log(context.Background(), level, msg, args...)
}

func LogDebug(msg string, args ...any) { logAt(slog.LevelDebug, msg, args...) }

func LogInfo(msg string, args ...any) { logAt(slog.LevelInfo, msg, args...) }

// LogError logs at error level with err under the "error" key.
func LogError(msg string, err error, args ...any) {
	logAt(slog.LevelError, msg, append([]any{"error", err}, args...)...)
}
