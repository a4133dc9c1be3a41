package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/api"
	"github.com/ashureev/helpdesk-widget/internal/config"
	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/identity"
	"github.com/ashureev/helpdesk-widget/internal/metrics"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Event type names accepted on the wire.
const (
	EventSubmit     = "submit"
	EventQuickReply = "quick_reply"
	EventVoice      = "voice"
	EventClear      = "clear"
	EventFeedback   = "feedback"
	EventFAQ        = "faq"

	voiceErrorUnsupported = "unsupported"
)

var errUnknownEventType = errors.New("unknown event type")

// EventRequest is the JSON body of POST /api/widget/events and of inbound
// websocket frames.
type EventRequest struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
	Sign     string `json:"sign,omitempty"`
	Category string `json:"category,omitempty"`
}

// toEvent maps a wire request onto a typed session event.
func (req EventRequest) toEvent() (session.Event, error) {
	switch req.Type {
	case EventSubmit:
		return session.SubmitEvent{Text: req.Text}, nil
	case EventQuickReply:
		return session.QuickReplyEvent{Text: req.Text}, nil
	case EventVoice:
		switch req.Error {
		case "":
			return session.VoiceEvent{Text: req.Text}, nil
		case voiceErrorUnsupported:
			return session.VoiceEvent{Err: session.ErrVoiceUnsupported}, nil
		default:
			return session.VoiceEvent{Err: fmt.Errorf("speech recognizer: %s", req.Error)}, nil
		}
	case EventClear:
		return session.ClearEvent{}, nil
	case EventFeedback:
		return session.FeedbackEvent{Sign: domain.FeedbackSign(req.Sign)}, nil
	case EventFAQ:
		return session.OpenFAQEvent{Category: req.Category}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEventType, req.Type)
	}
}

// EventResponse answers an accepted event.
type EventResponse struct {
	session.DispatchResult
	URL string `json:"url,omitempty"`
}

// Handler serves the widget endpoints for the visitor and tab found in the
// request context.
type Handler struct {
	sessions       *session.Manager
	hub            *Hub
	limiter        *visitorLimiter
	logger         *slog.Logger
	keepalive      time.Duration
	retryDelay     time.Duration
	maxBodySize    int64
	allowedOrigins []string
	isDev          bool
	done           chan struct{}
}

// NewHandler creates a widget handler. A nil cfg uses the built-in defaults.
func NewHandler(sessions *session.Manager, hub *Hub, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	rateLimitRequests := 20
	rateLimitWindow := time.Minute
	h := &Handler{
		sessions:       sessions,
		hub:            hub,
		logger:         logger,
		keepalive:      10 * time.Second,
		retryDelay:     5 * time.Second,
		maxBodySize:    defaultMaxRequestBodySize,
		allowedOrigins: []string{"*"},
		isDev:          true,
		done:           make(chan struct{}),
	}
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		h.keepalive = cfg.SSE.KeepaliveInterval
		h.retryDelay = cfg.SSE.RetryDelay
		h.maxBodySize = cfg.SSE.MaxRequestBodySize
		h.allowedOrigins = cfg.AllowedOrigins()
		h.isDev = cfg.IsDevelopment()
	}

	h.limiter = newVisitorLimiter(rateLimitRequests, rateLimitWindow)
	h.limiter.startEviction(h.done)
	return h
}

// RegisterRoutes registers the widget routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/widget", func(r chi.Router) {
		r.Post("/events", h.HandleEvent)
		r.Get("/transcript", h.HandleTranscript)
		r.Get("/transcript.txt", h.HandleTranscriptText)
		r.Get("/stream", h.HandleStream)
	})
	r.Get("/ws/widget", h.HandleWebSocket)
}

// Close stops background work.
func (h *Handler) Close() {
	close(h.done)
}

// controller resolves the caller's session, creating it on first use.
func (h *Handler) controller(r *http.Request) (*session.Controller, bool) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		return nil, false
	}
	c, created := h.sessions.GetOrCreate(visitorID, identity.SessionIDFromContext(r.Context()))
	if created {
		h.logger.Debug("widget session created on request", "visitor_id", visitorID, "path", r.URL.Path)
	}
	return c, true
}

// allow applies the visitor rate limit and writes the 429 answer when it trips.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	visitorID := identity.VisitorIDFromContext(r.Context())
	ok, retryAfter := h.limiter.reserve(visitorID)
	if ok {
		return true
	}
	metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
	h.logger.Warn("widget rate limit exceeded",
		"visitor_id", visitorID,
		"ip", identity.IPFromRequest(r),
		"endpoint", endpoint,
	)
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

// HandleEvent handles POST /api/widget/events.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.allow(w, r, "events") {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, status, err := h.dispatch(c, req)
	if err != nil {
		api.Error(w, status, err.Error())
		return
	}
	api.JSON(w, status, resp)
}

// dispatch applies one wire event and maps its error to an HTTP status.
func (h *Handler) dispatch(c *session.Controller, req EventRequest) (EventResponse, int, error) {
	ev, err := req.toEvent()
	if err != nil {
		return EventResponse{}, http.StatusBadRequest, err
	}

	res, err := c.Dispatch(ev)
	switch {
	case errors.Is(err, session.ErrUnknownFAQCategory):
		return EventResponse{}, http.StatusNotFound, err
	case errors.Is(err, session.ErrInvalidFeedback):
		return EventResponse{}, http.StatusBadRequest, err
	case err != nil:
		h.logger.Error("widget event failed", "session_id", c.SessionID(), "type", req.Type, "error", err)
		return EventResponse{}, http.StatusInternalServerError, errors.New("event failed")
	}

	resp := EventResponse{DispatchResult: res}
	if res.FAQ != nil {
		resp.URL = res.FAQ.URL
	}
	h.logger.Debug("widget event dispatched",
		"session_id", c.SessionID(),
		"type", req.Type,
		"accepted", res.Accepted,
		"busy", res.Busy,
	)
	return resp, http.StatusAccepted, nil
}

// HandleTranscript handles GET /api/widget/transcript.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	msgs, busy := c.Snapshot()
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": c.SessionID(),
		"messages":   msgs,
		"busy":       busy,
	})
}

// HandleTranscriptText handles GET /api/widget/transcript.txt.
func (h *Handler) HandleTranscriptText(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="chat-history.txt"`)
	if _, err := w.Write([]byte(c.Transcript())); err != nil {
		h.logger.Debug("failed to write transcript", "error", err)
	}
}

// parseLastEventID reads the replay position from the header or a query parameter.
func parseLastEventID(r *http.Request, queryKey string) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get(queryKey)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
