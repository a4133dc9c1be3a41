package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/assistant"
	"github.com/ashureev/helpdesk-widget/internal/health"
	"github.com/ashureev/helpdesk-widget/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// AssistantStatus reports the last assistant probe.
type AssistantStatus interface {
	Status() health.Status
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo      store.Repository
	assistant AssistantStatus
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, assistant AssistantStatus) *HealthHandler {
	return &HealthHandler{repo: repo, assistant: assistant}
}

// Health returns the health status of the gateway and its dependencies.
// An unreachable assistant degrades the status without failing the check,
// since every exchange is still attempted.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.assistant != nil {
		st := h.assistant.Status()
		switch {
		case st.CheckedAt.IsZero():
			checks["assistant"] = "unknown"
		case st.Up:
			checks["assistant"] = "ok"
		default:
			checks["assistant"] = "unreachable"
			status["status"] = "degraded"
		}
		if !st.CheckedAt.IsZero() {
			status["assistant_checked_at"] = st.CheckedAt.UTC().Format(time.RFC3339)
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// BackendStats fetches statistics from the assistant backend.
type BackendStats interface {
	Stats(ctx context.Context) (assistant.BackendStats, error)
}

// StatsHandler serves journal and backend statistics.
type StatsHandler struct {
	*Handler
	backend BackendStats
}

// NewStatsHandler creates a stats handler. backend may be nil when the
// assistant is mocked.
func NewStatsHandler(base *Handler, backend BackendStats) *StatsHandler {
	return &StatsHandler{Handler: base, backend: backend}
}

// RegisterRoutes registers stats routes.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stats", h.Journal)
	r.Get("/api/stats/assistant", h.Assistant)
}

// Journal returns aggregated exchange statistics.
func (h *StatsHandler) Journal(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to aggregate journal", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"journal":         stats,
		"active_sessions": h.sessions.Count(),
	})
}

// Assistant proxies the backend's own statistics.
func (h *StatsHandler) Assistant(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		Error(w, http.StatusNotImplemented, "assistant statistics unavailable")
		return
	}

	stats, err := h.backend.Stats(r.Context())
	if err != nil {
		slog.Warn("Failed to fetch assistant statistics", "error", err)
		Error(w, http.StatusBadGateway, "assistant statistics unavailable")
		return
	}
	JSON(w, http.StatusOK, stats)
}
