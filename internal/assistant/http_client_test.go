package assistant

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, askTimeout time.Duration) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(ClientConfig{
		BaseURL:       srv.URL,
		AskTimeout:    askTimeout,
		HealthTimeout: askTimeout,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAskSuccess(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"08:00-16:00","category":"Layanan","confidence":0.92,"response_time":0.12,"timestamp":"2024-01-01T00:00:00"}`))
	}, time.Second)

	reply := client.Ask(context.Background(), "jam layanan?")

	assert.Equal(t, "jam layanan?", got.Message)
	require.NotNil(t, reply.Success)
	assert.Nil(t, reply.Failure)
	assert.Equal(t, "08:00-16:00", reply.Success.Text)
	assert.Equal(t, "Layanan", reply.Success.Category)
	assert.InDelta(t, 0.92, reply.Success.Confidence, 1e-9)
	require.NotNil(t, reply.Success.ResponseTimeSeconds)
	assert.InDelta(t, 0.12, *reply.Success.ResponseTimeSeconds, 1e-9)
	assert.Equal(t, domain.OutcomeSuccess, reply.Outcome())
}

func TestAskEmptyCategoryPassesThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","category":"","confidence":1.5}`))
	}, time.Second)

	reply := client.Ask(context.Background(), "x")

	require.NotNil(t, reply.Success)
	assert.Equal(t, "", reply.Success.Category)
	assert.InDelta(t, 1.5, reply.Success.Confidence, 1e-9)
	assert.Nil(t, reply.Success.ResponseTimeSeconds)
}

func TestAskLogicalFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error":"model exploded"}`))
	}, time.Second)

	reply := client.Ask(context.Background(), "halo")

	require.NotNil(t, reply.Success)
	assert.Equal(t, LogicalFailureText, reply.Success.Text)
	assert.Equal(t, "Error", reply.Success.Category)
	assert.Zero(t, reply.Success.Confidence)
	assert.True(t, reply.Success.LogicalFailure)
	assert.Equal(t, domain.OutcomeLogicalFailure, reply.Outcome())
}

func TestAskTimeout(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	reply := client.Ask(context.Background(), "test")

	require.NotNil(t, reply.Failure)
	assert.Equal(t, domain.FailureTimeout, reply.Failure.Reason)
}

func TestAskStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.FailureReason
	}{
		{"service unavailable", http.StatusServiceUnavailable, `{"status":"error"}`, domain.FailureServiceUnavailable},
		{"internal error", http.StatusInternalServerError, `{"status":"error"}`, domain.FailureServerError},
		{"bad request", http.StatusBadRequest, `{"status":"error"}`, domain.FailureServerError},
		{"undecodable body", http.StatusOK, `<html>oops</html>`, domain.FailureServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			reply := client.Ask(context.Background(), "x")

			require.NotNil(t, reply.Failure)
			assert.Equal(t, tt.want, reply.Failure.Reason)
		})
	}
}

func TestAskNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(ClientConfig{BaseURL: url, AskTimeout: time.Second}, nil)
	reply := client.Ask(context.Background(), "x")

	require.NotNil(t, reply.Failure)
	assert.Equal(t, domain.FailureNetworkError, reply.Failure.Reason)
}

func TestSendFeedbackPayload(t *testing.T) {
	received := make(chan feedbackRequest, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feedback", r.URL.Path)
		var req feedbackRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)

	client.SendFeedback(context.Background(), domain.FeedbackNegative, 7)

	req := <-received
	assert.Equal(t, "negative", req.Type)
	assert.Equal(t, int64(7), req.MessageID)
	_, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	assert.NoError(t, err)
}

func TestCheckHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"sehat","chatbot_ready":true,"chatbot_error":null}`))
		}, time.Second)
		assert.True(t, client.CheckHealth(context.Background()))
	})

	t.Run("reachable but not ready", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"sehat","chatbot_ready":false,"chatbot_error":"model missing"}`))
		}, time.Second)
		assert.True(t, client.CheckHealth(context.Background()))
	})

	t.Run("error status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, time.Second)
		assert.False(t, client.CheckHealth(context.Background()))
	})
}

func TestStats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total_questions":12,"categories":{"Layanan":3}}`))
	}, time.Second)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.0, stats["total_questions"], 1e-9)
}

func TestMockAsk(t *testing.T) {
	m := NewMock(nil, 0, nil)

	reply := m.Ask(context.Background(), "Jam layanan kapan?")
	require.NotNil(t, reply.Success)
	assert.Equal(t, "Layanan", reply.Success.Category)

	reply = m.Ask(context.Background(), "zzz")
	require.NotNil(t, reply.Success)
	assert.Equal(t, mockFallbackCategory, reply.Success.Category)
	assert.True(t, m.CheckHealth(context.Background()))
}

func TestMockAskHonorsDeadline(t *testing.T) {
	m := NewMock(nil, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	reply := m.Ask(ctx, "jam")

	require.NotNil(t, reply.Failure)
	assert.Equal(t, domain.FailureTimeout, reply.Failure.Reason)
}
