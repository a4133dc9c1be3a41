package widget

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/api"
	"github.com/ashureev/helpdesk-widget/internal/metrics"
)

// HandleStream handles GET /api/widget/stream. Each change is sent with its
// event id so a reconnecting EventSource resumes through Last-Event-ID. A
// client that cannot be replayed gets a fresh snapshot event instead.
//
//nolint:gocyclo // SSE lifecycle handling intentionally keeps branches together.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	visitorID, sessionID := c.VisitorID(), c.SessionID()
	lastEventID := parseLastEventID(r, "lastEventId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.hub.Attach(visitorID, sessionID, lastEventID)
	if err != nil {
		h.logger.Warn("failed to attach widget stream", "visitor_id", visitorID, "session_id", sessionID, "error", err)
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	defer sub.Close()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.retryDelay.Milliseconds())); err != nil {
		h.logger.Warn("failed to write SSE retry header", "error", err, "session_id", sessionID)
		return
	}

	if sub.Snapshot != nil {
		if err := writeSSEJSON(w, sub.Snapshot.ID, "snapshot", sub.Snapshot); err != nil {
			h.logger.Warn("failed to write SSE snapshot", "error", err, "session_id", sessionID)
			return
		}
	}
	for _, ev := range sub.Replay {
		if err := writeSSEJSON(w, ev.ID, string(ev.Change.Type), ev.Change); err != nil {
			h.logger.Warn("failed to replay SSE event", "error", err, "session_id", sessionID)
			return
		}
	}
	if err := writeSSE(w, "connected", fmt.Sprintf(`{"status":"connected","session_id":%q}`, sessionID)); err != nil {
		h.logger.Warn("failed to write SSE connected event", "error", err, "session_id", sessionID)
		return
	}
	flusher.Flush()

	h.logger.Info("widget stream connected",
		"visitor_id", visitorID,
		"session_id", sessionID,
		"reconnect", lastEventID > 0,
		"replayed", len(sub.Replay),
	)

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("widget stream disconnected", "visitor_id", visitorID, "session_id", sessionID)
			return
		case ev, ok := <-sub.C:
			if !ok {
				h.logger.Info("widget stream closed by hub", "visitor_id", visitorID, "session_id", sessionID)
				return
			}
			if err := writeSSEJSON(w, ev.ID, string(ev.Change.Type), ev.Change); err != nil {
				h.logger.Warn("failed to write SSE event", "error", err, "session_id", sessionID)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				h.logger.Warn("failed to write SSE keepalive ping", "error", err, "session_id", sessionID)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}

func writeSSEJSON(w io.Writer, id int64, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	return writeSSEWithID(w, id, event, string(data))
}
