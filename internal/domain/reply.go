package domain

// FailureReason is the closed set of transport outcomes an exchange can end with.
type FailureReason string

const (
	FailureTimeout            FailureReason = "timeout"
	FailureServiceUnavailable FailureReason = "service_unavailable"
	FailureNetworkError       FailureReason = "network_error"
	FailureServerError        FailureReason = "server_error"
)

// AssistantReply is the normalized result of one call to the remote assistant.
// Exactly one of Success or Failure is set.
type AssistantReply struct {
	Success *ReplySuccess
	Failure *ReplyFailure
}

// ReplySuccess carries the text shown as the bot turn.
type ReplySuccess struct {
	Text                string
	Category            string
	Confidence          float64
	ResponseTimeSeconds *float64
	// LogicalFailure is set when the backend answered but reported a non-success
	// status; Text then holds the fixed apology.
	LogicalFailure bool
}

// ReplyFailure carries the transport failure kind.
type ReplyFailure struct {
	Reason FailureReason
}

// SuccessReply builds a successful reply.
func SuccessReply(text, category string, confidence float64, responseTime *float64) AssistantReply {
	return AssistantReply{Success: &ReplySuccess{
		Text:                text,
		Category:            category,
		Confidence:          confidence,
		ResponseTimeSeconds: responseTime,
	}}
}

// FailureReply builds a failed reply.
func FailureReply(reason FailureReason) AssistantReply {
	return AssistantReply{Failure: &ReplyFailure{Reason: reason}}
}

// Outcome classifies the reply for journaling and metrics.
func (r AssistantReply) Outcome() Outcome {
	switch {
	case r.Success != nil && r.Success.LogicalFailure:
		return OutcomeLogicalFailure
	case r.Success != nil:
		return OutcomeSuccess
	case r.Failure != nil:
		return Outcome(r.Failure.Reason)
	default:
		return OutcomeNetworkError
	}
}

// FeedbackSign is the visitor's verdict on the last turn.
type FeedbackSign string

const (
	FeedbackPositive FeedbackSign = "positive"
	FeedbackNegative FeedbackSign = "negative"
)

// Valid reports whether s is one of the known signs.
func (s FeedbackSign) Valid() bool {
	return s == FeedbackPositive || s == FeedbackNegative
}
