package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// New builds the process logger. JSON goes to stdout in Kubernetes and in the
// dev/prod environments, colored text everywhere else. LOG_LEVEL overrides the
// default level, and ROLLBAR_TOKEN turns on error reporting.
func New() *slog.Logger {
	return slog.New(newHandler(os.Stdout))
}

func newHandler(w io.Writer) slog.Handler {
	env := os.Getenv("ENV")
	_, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	structured := inK8s || env == "prod" || env == "dev"

	level := slog.LevelDebug
	if structured {
		level = slog.LevelInfo
	}
	level = parseLevel(os.Getenv("LOG_LEVEL"), level)

	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: true})
	} else {
		handler = &colorTextHandler{handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})}
	}

	handler = newTraceContextHandler(handler)
	if token := os.Getenv("ROLLBAR_TOKEN"); token != "" {
		handler = newRollbarHandler(handler, token, env)
	}
	return handler
}

// parseLevel accepts the slog level names ("debug", "WARN", "error+2").
func parseLevel(raw string, fallback slog.Level) slog.Level {
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return fallback
	}
	return level
}

func NewWithServiceContext(serviceName, version string) *slog.Logger {
	return New().With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

// NewDiscard returns a logger that drops every record. Used by tests and CLIs.
func NewDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var levelColors = map[slog.Level]string{
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelError: "\x1b[31m",
}

// colorTextHandler paints the message of WARN and ERROR records.
type colorTextHandler struct {
	handler slog.Handler
}

func (h *colorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	color, ok := levelColors[r.Level]
	if !ok && r.Level > slog.LevelError {
		color, ok = levelColors[slog.LevelError], true
	}
	if !ok {
		return h.handler.Handle(ctx, r)
	}

	painted := slog.NewRecord(r.Time, r.Level, color+r.Message+"\x1b[0m", r.PC)
	r.Attrs(func(a slog.Attr) bool {
		painted.AddAttrs(a)
		return true
	})
	return h.handler.Handle(ctx, painted)
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorTextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *colorTextHandler) WithGroup(name string) slog.Handler {
	return &colorTextHandler{handler: h.handler.WithGroup(name)}
}

// traceContextHandler stamps trace_id and span_id from the active span.
type traceContextHandler struct {
	handler slog.Handler
}

func newTraceContextHandler(h slog.Handler) *traceContextHandler {
	return &traceContextHandler{handler: h}
}

func (h *traceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	return h.handler.Handle(ctx, r)
}

func (h *traceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *traceContextHandler) WithGroup(name string) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithGroup(name)}
}
