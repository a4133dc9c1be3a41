package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

type feedbackCall struct {
	sign      domain.FeedbackSign
	messageID int64
}

// fakeAssistant blocks each Ask until a reply is pushed or ctx ends.
type fakeAssistant struct {
	mu        sync.Mutex
	asks      []string
	replies   chan domain.AssistantReply
	healthy   bool
	ignoreCtx bool
	feedback  chan feedbackCall

	// healthGate, when set, holds CheckHealth until it is closed.
	healthGate chan struct{}
}

func newFakeAssistant(healthy bool) *fakeAssistant {
	return &fakeAssistant{
		replies:  make(chan domain.AssistantReply, 4),
		healthy:  healthy,
		feedback: make(chan feedbackCall, 4),
	}
}

func (f *fakeAssistant) Ask(ctx context.Context, utterance string) domain.AssistantReply {
	f.mu.Lock()
	f.asks = append(f.asks, utterance)
	f.mu.Unlock()

	if f.ignoreCtx {
		return <-f.replies
	}
	select {
	case r := <-f.replies:
		return r
	case <-ctx.Done():
		return domain.FailureReply(domain.FailureTimeout)
	}
}

func (f *fakeAssistant) SendFeedback(_ context.Context, sign domain.FeedbackSign, messageID int64) {
	f.feedback <- feedbackCall{sign: sign, messageID: messageID}
}

func (f *fakeAssistant) CheckHealth(context.Context) bool {
	if f.healthGate != nil {
		<-f.healthGate
	}
	return f.healthy
}

func (f *fakeAssistant) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.asks)
}

type fakeJournal struct {
	mu        sync.Mutex
	exchanges []domain.Exchange
	feedback  []domain.Feedback
}

func (j *fakeJournal) RecordExchange(_ context.Context, ex *domain.Exchange) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.exchanges = append(j.exchanges, *ex)
	return nil
}

func (j *fakeJournal) RecordFeedback(_ context.Context, fb *domain.Feedback) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.feedback = append(j.feedback, *fb)
	return nil
}

func (j *fakeJournal) snapshot() ([]domain.Exchange, []domain.Feedback) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.Exchange(nil), j.exchanges...), append([]domain.Feedback(nil), j.feedback...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	dropped  int
	late     int
	sessions int
}

func (r *fakeRecorder) ExchangeSettled(outcome domain.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) SubmitDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *fakeRecorder) FeedbackSent(domain.FeedbackSign) {}

func (r *fakeRecorder) LateReplyDiscarded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.late++
}

func (r *fakeRecorder) JournalWriteFailed() {}

func (r *fakeRecorder) SessionsActive(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
