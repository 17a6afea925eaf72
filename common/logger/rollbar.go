package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/rollbar/rollbar-go"
)

// reportFunc sends one error record to the error tracker.
type reportFunc func(err error, extras map[string]interface{})

// rollbarHandler forwards ERROR records to Rollbar and passes every record
// through to the wrapped handler.
type rollbarHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
	report  reportFunc
}

func newRollbarHandler(h slog.Handler, token, env string) *rollbarHandler {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}

	return &rollbarHandler{
		handler: h,
		report: func(err error, extras map[string]interface{}) {
			rollbar.Error(err, extras)
		},
	}
}

func (h *rollbarHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *rollbarHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError && h.report != nil {
		extras := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			extras[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			extras[a.Key] = a.Value.Any()
			return true
		})
		h.report(errors.New(r.Message), extras)
	}
	return h.handler.Handle(ctx, r)
}

func (h *rollbarHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &rollbarHandler{handler: h.handler.WithAttrs(attrs), attrs: merged, report: h.report}
}

func (h *rollbarHandler) WithGroup(name string) slog.Handler {
	return &rollbarHandler{handler: h.handler.WithGroup(name), attrs: h.attrs, report: h.report}
}
