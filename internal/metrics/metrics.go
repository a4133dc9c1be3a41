// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Conversation metrics
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_exchanges_total",
			Help: "Settled exchanges by outcome",
		},
		[]string{"outcome"},
	)

	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_exchange_duration_seconds",
			Help:    "Time from submit to settle",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"outcome"},
	)

	SubmitsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_submits_dropped_total",
			Help: "Submits ignored because an exchange was outstanding",
		},
	)

	LateRepliesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_late_replies_discarded_total",
			Help: "Replies that arrived after their exchange was settled",
		},
	)

	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_feedback_total",
			Help: "Feedback clicks by sign",
		},
		[]string{"sign"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helpdesk_active_sessions",
			Help: "Widget sessions currently held in memory",
		},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helpdesk_stream_subscribers",
			Help: "Open SSE and websocket subscribers",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Upstream metrics
	AssistantUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helpdesk_assistant_up",
			Help: "1 when the last assistant health probe succeeded",
		},
	)

	JournalWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_journal_write_errors_total",
			Help: "Failed journal writes",
		},
	)
)

// Recorder feeds controller events into the collectors above.
type Recorder struct{}

// ExchangeSettled counts an exchange and observes its latency.
func (Recorder) ExchangeSettled(outcome domain.Outcome, latency time.Duration) {
	ExchangesTotal.WithLabelValues(string(outcome)).Inc()
	ExchangeDuration.WithLabelValues(string(outcome)).Observe(latency.Seconds())
}

// SubmitDropped counts a submit rejected while busy.
func (Recorder) SubmitDropped() {
	SubmitsDropped.Inc()
}

// FeedbackSent counts a feedback click.
func (Recorder) FeedbackSent(sign domain.FeedbackSign) {
	FeedbackTotal.WithLabelValues(string(sign)).Inc()
}

// LateReplyDiscarded counts a reply for an already settled exchange.
func (Recorder) LateReplyDiscarded() {
	LateRepliesDiscarded.Inc()
}

// SessionsActive sets the live session gauge.
func (Recorder) SessionsActive(n int) {
	ActiveSessions.Set(float64(n))
}

// JournalWriteFailed counts a failed journal insert.
func (Recorder) JournalWriteFailed() {
	JournalWriteErrors.Inc()
}
