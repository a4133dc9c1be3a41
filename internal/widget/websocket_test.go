package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/identity"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wsFrame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame wsFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func writeFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, req EventRequest) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestWebSocketRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleWebSocket(w, r.WithContext(identity.WithIdentity(r.Context(), "anon_ws", "tab1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	frame := readFrame(t, ctx, conn)
	require.Equal(t, "snapshot", frame.Type)
	require.NotNil(t, frame.Snapshot)
	require.Len(t, frame.Snapshot.Messages, 1)
	assert.Equal(t, session.WelcomeText, frame.Snapshot.Messages[0].Text)

	writeFrame(t, ctx, conn, EventRequest{Type: wsPing})
	assert.Equal(t, "pong", readFrame(t, ctx, conn).Type)

	writeFrame(t, ctx, conn, EventRequest{Type: EventSubmit, Text: "jam layanan?"})

	var (
		gotResult bool
		botText   string
	)
	for !gotResult || botText == "" {
		frame := readFrame(t, ctx, conn)
		switch frame.Type {
		case "result":
			require.NotNil(t, frame.Result)
			assert.True(t, frame.Result.Accepted)
			gotResult = true
		case "change":
			require.NotNil(t, frame.Change)
			if frame.Change.Type == session.ChangeMessageAppended && frame.Change.Message.Sender == "bot" {
				botText = frame.Change.Message.Text
			}
		}
	}
	assert.Equal(t, "Jam layanan 08.00-16.00", botText)

	writeFrame(t, ctx, conn, EventRequest{Type: "dance"})
	for {
		frame := readFrame(t, ctx, conn)
		if frame.Type == "error" {
			assert.Contains(t, frame.Error, "unknown event type")
			break
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	h := &Handler{allowedOrigins: []string{"https://portal.example.ac.id"}, logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/ws/widget", nil)
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://portal.example.ac.id")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.checkOrigin(req))

	h.isDev = true
	assert.True(t, h.checkOrigin(req))
}
