// Package health serves liveness and readiness probes over HTTP and the
// standard gRPC health service.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
)

const checkTimeout = 2 * time.Second

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency probe.
type Check struct {
	Name string
	Fn   CheckFunc
}

type Handler struct {
	checks  []Check
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(m *metrics.Metrics, logger *slog.Logger, checks ...Check) *Handler {
	return &Handler{
		checks:  checks,
		metrics: m,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready answers 503 when any dependency check fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	results, ok := h.Run(r.Context())

	resp := HealthResponse{Status: "ready", Checks: results}
	status := http.StatusOK
	if !ok {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	httputil.RespondWithJSON(w, status, resp)
}

// Run executes every check and reports each result keyed by name.
func (h *Handler) Run(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	ok := true
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		err := c.Fn(checkCtx)
		cancel()

		h.metrics.Health.RecordDependencyCheck(ctx, c.Name, time.Since(start), err)
		if err != nil {
			h.logger.WarnContext(ctx, "dependency check failed", "dependency", c.Name, "error", err)
			results[c.Name] = err.Error()
			ok = false
			continue
		}
		results[c.Name] = "ok"
	}
	return results, ok
}

// Names lists the configured checks in sorted order.
func (h *Handler) Names() []string {
	names := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
