package domain

import (
	"time"
)

// Outcome is how an exchange ended.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeLogicalFailure     Outcome = "logical_failure"
	OutcomeTimeout            Outcome = Outcome(FailureTimeout)
	OutcomeServiceUnavailable Outcome = Outcome(FailureServiceUnavailable)
	OutcomeNetworkError       Outcome = Outcome(FailureNetworkError)
	OutcomeServerError        Outcome = Outcome(FailureServerError)
)

// Exchange is the journal record of one submit/settle cycle.
// It feeds statistics only and is never replayed into a session.
type Exchange struct {
	ID         string
	VisitorID  string
	SessionID  string
	UserText   string
	ReplyText  string
	Category   string
	Confidence float64
	Outcome    Outcome
	Latency    time.Duration
	CreatedAt  time.Time
}

// Feedback is the journal record of one feedback click.
type Feedback struct {
	VisitorID string
	SessionID string
	MessageID int64
	Sign      FeedbackSign
	CreatedAt time.Time
}

// Stats aggregates the journal.
type Stats struct {
	TotalExchanges    int64            `json:"total_exchanges"`
	ByOutcome         map[string]int64 `json:"by_outcome"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	CategoryCounts    map[string]int64 `json:"category_counts"`
	PositiveFeedback  int64            `json:"positive_feedback"`
	NegativeFeedback  int64            `json:"negative_feedback"`
	ActiveVisitors24h int64            `json:"active_visitors_24h"`
}
