package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/helpdesk-widget/internal/identity"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/go-chi/chi/v5"
)

// resetLocks prevents concurrent reset requests for the same tab.
var resetLocks sync.Map

// SessionHandler handles visitor and session endpoints.
type SessionHandler struct {
	*Handler
	askTimeoutSeconds float64
	mock              bool
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler, askTimeoutSeconds float64, mock bool) *SessionHandler {
	return &SessionHandler{Handler: base, askTimeoutSeconds: askTimeoutSeconds, mock: mock}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Post("/reset", h.Reset)
	})
}

// GetMe returns the current visitor's information.
func (h *SessionHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	visitor, err := h.repo.GetVisitor(r.Context(), visitorID)
	if err != nil || visitor == nil {
		Error(w, http.StatusUnauthorized, "visitor not found")
		return
	}

	sessionID := identity.SessionIDFromContext(r.Context())
	JSON(w, http.StatusOK, map[string]interface{}{
		"visitor_id":     visitor.VisitorID,
		"label":          visitor.Label,
		"session_id":     sessionID,
		"session_active": h.sessions.Get(visitorID, sessionID) != nil,
	})
}

// GetConfig returns the widget configuration for the frontend.
func (h *SessionHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"faq_links":           session.FAQLinks(),
		"ask_timeout_seconds": h.askTimeoutSeconds,
		"mock_assistant":      h.mock,
	})
}

// Reset closes the current tab's conversation. The next widget request starts
// a fresh session with a new welcome message.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	key := visitorID + ":" + sessionID

	lock, _ := resetLocks.LoadOrStore(key, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	if !mutex.TryLock() {
		slog.Warn("Reset already in progress", "visitor_id", visitorID, "session_id", sessionID)
		JSON(w, http.StatusOK, map[string]string{"status": "resetting"})
		return
	}
	defer func() {
		mutex.Unlock()
		resetLocks.Delete(key)
	}()

	h.sessions.Remove(visitorID, sessionID)

	slog.Info("Widget session reset", "visitor_id", visitorID, "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
