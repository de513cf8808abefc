package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/http/respond"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

// HealthHandler returns uptime and dependency status.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]Check
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, checks map[string]Check) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, checks: checks}
}

// Register wires the handler into a router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	respond.JSON(w, code, status, map[string]any{
		"status":       status,
		"uptime":       time.Since(h.startedAt).Truncate(time.Second).String(),
		"dependencies": deps,
	})
}
