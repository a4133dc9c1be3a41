// Package api provides HTTP handlers for the helpdesk widget gateway.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/ashureev/helpdesk-widget/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	sessions *session.Manager
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions *session.Manager) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// NotFound answers unknown routes in the backend's error shape.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint tidak ditemukan", "status": "error"})
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method tidak diizinkan", "status": "error"})
}
