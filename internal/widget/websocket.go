package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ashureev/helpdesk-widget/internal/api"
	"github.com/ashureev/helpdesk-widget/internal/identity"
	"github.com/ashureev/helpdesk-widget/internal/metrics"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/coder/websocket"
)

// wsFrame is the outbound websocket envelope.
type wsFrame struct {
	Type     string          `json:"type"`
	ID       int64           `json:"id,omitempty"`
	Change   *session.Change `json:"change,omitempty"`
	Snapshot *Snapshot       `json:"snapshot,omitempty"`
	Result   *EventResponse  `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

const wsPing = "ping"

// wsConn serializes writes from the change loop and the event loop.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// HandleWebSocket handles GET /ws/widget: inbound frames are EventRequests,
// outbound frames carry changes, snapshots and event results.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	visitorID, sessionID := c.VisitorID(), c.SessionID()
	h.logger.Info("widget websocket request", "visitor_id", visitorID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		api.Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept websocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()

	sub, err := h.hub.Attach(visitorID, sessionID, parseLastEventID(r, "last_event_id"))
	if err != nil {
		h.logger.Warn("failed to attach widget websocket", "session_id", sessionID, "error", err)
		return
	}
	defer sub.Close()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := &wsConn{conn: ws}

	if sub.Snapshot != nil {
		if err := conn.writeJSON(ctx, wsFrame{Type: "snapshot", ID: sub.Snapshot.ID, Snapshot: sub.Snapshot}); err != nil {
			h.logger.Debug("failed to send websocket snapshot", "error", err)
			return
		}
	}
	for _, ev := range sub.Replay {
		change := ev.Change
		if err := conn.writeJSON(ctx, wsFrame{Type: "change", ID: ev.ID, Change: &change}); err != nil {
			h.logger.Debug("failed to replay websocket change", "error", err)
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: websocket -> controller.
	go func() {
		defer wg.Done()
		defer cancel()
		h.wsInputLoop(ctx, conn, c, r)
	}()

	// Output loop: hub -> websocket.
	go func() {
		defer wg.Done()
		defer cancel()
		h.wsOutputLoop(ctx, conn, sub)
	}()

	wg.Wait()
	h.logger.Info("widget websocket ended", "visitor_id", visitorID, "session_id", sessionID)
}

func (h *Handler) wsInputLoop(ctx context.Context, conn *wsConn, c *session.Controller, r *http.Request) {
	visitorID := c.VisitorID()
	for {
		_, message, err := conn.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("websocket closed by client", "visitor_id", visitorID)
			} else if ctx.Err() == nil {
				h.logger.Warn("websocket read error", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var req EventRequest
		if err := json.Unmarshal(message, &req); err != nil {
			if err := conn.writeJSON(ctx, wsFrame{Type: "error", Error: "invalid frame"}); err != nil {
				return
			}
			continue
		}

		if req.Type == wsPing {
			if err := conn.writeJSON(ctx, wsFrame{Type: "pong"}); err != nil {
				h.logger.Debug("failed to send pong", "error", err)
			}
			continue
		}

		if ok, _ := h.limiter.reserve(visitorID); !ok {
			metrics.RateLimitHits.WithLabelValues("ws").Inc()
			h.logger.Warn("widget rate limit exceeded", "visitor_id", visitorID, "ip", identity.IPFromRequest(r), "endpoint", "ws")
			if err := conn.writeJSON(ctx, wsFrame{Type: "error", Error: "rate limit exceeded"}); err != nil {
				return
			}
			continue
		}

		resp, _, err := h.dispatch(c, req)
		frame := wsFrame{Type: "result", Result: &resp}
		if err != nil {
			frame = wsFrame{Type: "error", Error: err.Error()}
		}
		if err := conn.writeJSON(ctx, frame); err != nil {
			h.logger.Debug("failed to send websocket result", "error", err)
			return
		}
	}
}

func (h *Handler) wsOutputLoop(ctx context.Context, conn *wsConn, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			change := ev.Change
			if err := conn.writeJSON(ctx, wsFrame{Type: "change", ID: ev.ID, Change: &change}); err != nil {
				h.logger.Debug("failed to send websocket change", "error", err)
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}
