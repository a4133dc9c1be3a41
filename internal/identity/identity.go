// Package identity provides anonymous per-device identity primitives.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/store"
)

const (
	VisitorCookieName     = "helpdesk_visitor_id"
	SessionHeaderName     = "X-Widget-Session-ID"
	DefaultSessionIDValue = "default"
	visitorCookieMaxAge   = 30 * 24 * time.Hour
	lastSeenResolution    = time.Minute
)

type contextKey int

const (
	visitorIDKey contextKey = iota
	labelKey
	sessionIDKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// VisitorIDFromContext extracts the visitor ID from the request context.
func VisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorIDKey).(string); ok {
		return v
	}
	return ""
}

// LabelFromContext extracts the display label from the request context.
func LabelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(labelKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity returns a context carrying the given visitor and session.
func WithIdentity(ctx context.Context, visitorID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, visitorIDKey, visitorID)
	ctx = context.WithValue(ctx, labelKey, deriveLabel(visitorID))
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(sessionID))
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func deriveLabel(visitorID string) string {
	if len(visitorID) > 13 {
		return "visitor-" + visitorID[len(visitorID)-8:]
	}
	return "visitor"
}

func ensureVisitor(ctx context.Context, repo store.Repository, visitorID string) error {
	visitor, err := repo.GetVisitor(ctx, visitorID)
	if err != nil {
		return err
	}

	now := time.Now()
	if visitor != nil {
		if visitor.IdleFor(now) < lastSeenResolution {
			return nil
		}
		return repo.UpdateLastSeen(ctx, visitorID, now)
	}

	return repo.UpsertVisitor(ctx, &domain.Visitor{
		VisitorID:  visitorID,
		Label:      deriveLabel(visitorID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setVisitorCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(visitorCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateVisitorID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(VisitorCookieName); err == nil && isValidAnonID(c.Value) {
		setVisitorCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setVisitorCookie(w, id, isDev)
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects the anonymous visitor identity and per-tab session ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID, err := getOrCreateVisitorID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			if err := ensureVisitor(r.Context(), repo, visitorID); err != nil {
				slog.Error("failed to record visitor", "visitor_id", visitorID, "error", err)
				http.Error(w, `{"error":"failed to initialize visitor"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithIdentity(r.Context(), visitorID, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
