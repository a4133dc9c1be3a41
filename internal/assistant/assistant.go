// Package assistant talks to the remote question-answering service.
package assistant

import (
	"context"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

// Assistant defines the contract the conversation controller relies on.
// Implementations never return transport errors from Ask: every outcome is a
// domain.AssistantReply value.
type Assistant interface {
	// Ask forwards one utterance and normalizes the outcome.
	Ask(ctx context.Context, utterance string) domain.AssistantReply

	// SendFeedback reports a verdict on a transcript message. Failures are logged only.
	SendFeedback(ctx context.Context, sign domain.FeedbackSign, messageID int64)

	// CheckHealth reports whether the backend is reachable.
	CheckHealth(ctx context.Context) bool
}

// Ensure implementations satisfy Assistant.
var (
	_ Assistant = (*HTTPClient)(nil)
	_ Assistant = (*Mock)(nil)
)
