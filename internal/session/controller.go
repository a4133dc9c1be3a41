package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/assistant"
	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultAskTimeout = 10 * time.Second
	exchangeGrace     = time.Second
	journalTimeout    = 5 * time.Second
	// startupHealthWait bounds how long the first submit waits for the startup probe.
	startupHealthWait = 3 * time.Second
)

// Journal persists exchange and feedback records for statistics.
type Journal interface {
	RecordExchange(ctx context.Context, ex *domain.Exchange) error
	RecordFeedback(ctx context.Context, fb *domain.Feedback) error
}

// Recorder receives controller metrics.
type Recorder interface {
	ExchangeSettled(outcome domain.Outcome, latency time.Duration)
	SubmitDropped()
	FeedbackSent(sign domain.FeedbackSign)
	LateReplyDiscarded()
	SessionsActive(n int)
	JournalWriteFailed()
}

// Options configures a Controller.
type Options struct {
	Assistant assistant.Assistant
	Journal   Journal
	Recorder  Recorder
	Logger    *slog.Logger
	VisitorID string
	SessionID string
	// AskTimeout is the assistant's own deadline. The controller settles the
	// exchange as a timeout if nothing arrives within AskTimeout plus a grace period.
	AskTimeout time.Duration
	Clock      func() time.Time
}

type pendingExchange struct {
	generation uint64
	text       string
	startedAt  time.Time
}

// Controller drives one conversation. All state transitions happen under mu,
// so events and settles are applied one at a time in arrival order.
type Controller struct {
	mu         sync.Mutex
	state      *State
	generation uint64
	pending    *pendingExchange
	observers  map[int]Observer
	nextObs    int
	started    bool
	closed     bool
	lastActive time.Time

	assistant       assistant.Assistant
	journal         Journal
	recorder        Recorder
	logger          *slog.Logger
	visitorID       string
	sessionID       string
	exchangeTimeout time.Duration
	now             func() time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	healthDone chan struct{}
}

// NewController creates a controller. Call Start to seed the transcript.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = defaultAskTimeout
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:           NewState(opts.Clock),
		observers:       make(map[int]Observer),
		lastActive:      opts.Clock(),
		assistant:       opts.Assistant,
		journal:         opts.Journal,
		recorder:        opts.Recorder,
		logger:          opts.Logger.With("visitor_id", opts.VisitorID, "session_id", opts.SessionID),
		visitorID:       opts.VisitorID,
		sessionID:       opts.SessionID,
		exchangeTimeout: opts.AskTimeout + exchangeGrace,
		now:             opts.Clock,
		ctx:             ctx,
		cancel:          cancel,
		healthDone:      make(chan struct{}),
	}
}

// SessionID returns the session identifier.
func (c *Controller) SessionID() string { return c.sessionID }

// VisitorID returns the owning visitor.
func (c *Controller) VisitorID() string { return c.visitorID }

// Start seeds the welcome message and probes the assistant once in the
// background. A failed probe appends a single warning notice. Start is idempotent.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	welcome := c.state.Clear()
	c.emit(messageAppended(welcome))
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer close(c.healthDone)

		if c.assistant.CheckHealth(c.ctx) {
			return
		}
		c.logger.Warn("assistant health check failed, continuing in degraded mode")

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.emit(messageAppended(c.state.AppendSystem(domain.NoticeWarning, OfflineWarningText)))
	}()
}

func (c *Controller) awaitHealth() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-c.healthDone:
		return
	default:
	}
	timer := time.NewTimer(startupHealthWait)
	defer timer.Stop()
	select {
	case <-c.healthDone:
	case <-c.ctx.Done():
	case <-timer.C:
		c.logger.Warn("startup health check still running, submitting anyway")
	}
}

// HealthChecked is closed once the startup probe finished and its notice, if any, was appended.
func (c *Controller) HealthChecked() <-chan struct{} {
	return c.healthDone
}

// Dispatch applies a typed event.
func (c *Controller) Dispatch(ev Event) (DispatchResult, error) {
	var res DispatchResult
	switch e := ev.(type) {
	case SubmitEvent:
		res.Accepted = c.Submit(e.Text)
	case QuickReplyEvent:
		res.Accepted = c.Submit(e.Text)
	case VoiceEvent:
		res.Accepted = c.VoiceResult(e.Text, e.Err)
	case ClearEvent:
		c.Clear()
		res.Accepted = true
	case FeedbackEvent:
		if err := c.ProvideFeedback(e.Sign); err != nil {
			return res, err
		}
		res.Accepted = true
	case OpenFAQEvent:
		link, err := c.OpenFAQ(e.Category)
		if err != nil {
			return res, err
		}
		res.Accepted = true
		res.FAQ = &link
	default:
		return res, fmt.Errorf("unsupported event %T", ev)
	}
	res.Busy = c.Busy()
	return res, nil
}

// Submit appends a user turn and asks the assistant. Blank text and submits
// while an exchange is outstanding are dropped. It reports whether an exchange
// started. While the startup probe is still running Submit waits for it, up to
// startupHealthWait, so an offline warning precedes the first user turn.
func (c *Controller) Submit(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	c.awaitHealth()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.lastActive = c.now()
	if c.state.Busy() {
		c.mu.Unlock()
		c.logger.Debug("submit dropped while awaiting reply")
		if c.recorder != nil {
			c.recorder.SubmitDropped()
		}
		return false
	}

	c.emit(messageAppended(c.state.AppendUser(trimmed)))
	c.state.setBusy(true)
	c.emit(busyChanged(true))

	c.generation++
	p := &pendingExchange{generation: c.generation, text: trimmed, startedAt: c.now()}
	c.pending = p
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runExchange(p)
	return true
}

func (c *Controller) runExchange(p *pendingExchange) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.exchangeTimeout)
	defer cancel()

	result := make(chan domain.AssistantReply, 1)
	go func() {
		result <- c.assistant.Ask(ctx, p.text)
	}()

	var reply domain.AssistantReply
	select {
	case reply = <-result:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		c.logger.Warn("assistant did not settle before the exchange deadline", "timeout", c.exchangeTimeout)
		reply = domain.FailureReply(domain.FailureTimeout)
	}

	c.settle(p.generation, reply)
}

// settle applies the reply for generation gen. Only the first settle of the
// outstanding generation has any effect.
func (c *Controller) settle(gen uint64, reply domain.AssistantReply) {
	c.mu.Lock()
	if c.closed || c.pending == nil || c.pending.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding late reply", "generation", gen)
		if c.recorder != nil {
			c.recorder.LateReplyDiscarded()
		}
		return
	}
	p := c.pending
	c.pending = nil

	var msg domain.Message
	if reply.Success != nil {
		s := reply.Success
		msg = c.state.AppendBot(s.Text, s.Category, s.Confidence, s.ResponseTimeSeconds)
	} else {
		reason := domain.FailureNetworkError
		if reply.Failure != nil {
			reason = reply.Failure.Reason
		}
		msg = c.state.AppendBot(failureText(reason), ErrorCategory, 0, nil)
	}
	c.emit(messageAppended(msg))
	c.state.setBusy(false)
	c.emit(busyChanged(false))
	c.lastActive = c.now()
	latency := c.now().Sub(p.startedAt)
	c.mu.Unlock()

	outcome := reply.Outcome()
	c.logger.Info("exchange settled", "outcome", outcome, "latency", latency, "message_id", msg.ID)
	if c.recorder != nil {
		c.recorder.ExchangeSettled(outcome, latency)
	}
	c.recordExchange(&domain.Exchange{
		ID:         uuid.NewString(),
		VisitorID:  c.visitorID,
		SessionID:  c.sessionID,
		UserText:   p.text,
		ReplyText:  msg.Text,
		Category:   msg.Category,
		Confidence: msg.ConfidenceValue(),
		Outcome:    outcome,
		Latency:    latency,
		CreatedAt:  p.startedAt,
	})
}

func (c *Controller) recordExchange(ex *domain.Exchange) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := c.journal.RecordExchange(ctx, ex); err != nil {
		c.logger.Warn("failed to journal exchange", "error", err)
		c.journalFailed()
	}
}

func (c *Controller) journalFailed() {
	if c.recorder != nil {
		c.recorder.JournalWriteFailed()
	}
}

// Clear resets the transcript to the welcome message. An outstanding exchange
// is not cancelled; its reply lands after the welcome.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.lastActive = c.now()
	c.emit(cleared(c.state.Clear()))
}

// ProvideFeedback reports a verdict on the latest turn and acknowledges it in
// the transcript. The send runs in the background and its failure is never shown.
func (c *Controller) ProvideFeedback(sign domain.FeedbackSign) error {
	if !sign.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, sign)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.lastActive = c.now()
	messageID := c.state.LastTurnID()
	c.emit(messageAppended(c.state.AppendSystem(domain.NoticeSuccess, FeedbackThanksText)))
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.assistant.SendFeedback(c.ctx, sign, messageID)
		if c.recorder != nil {
			c.recorder.FeedbackSent(sign)
		}
		if c.journal == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := c.journal.RecordFeedback(ctx, &domain.Feedback{
			VisitorID: c.visitorID,
			SessionID: c.sessionID,
			MessageID: messageID,
			Sign:      sign,
			CreatedAt: c.now(),
		}); err != nil {
			c.logger.Warn("failed to journal feedback", "error", err)
			c.journalFailed()
		}
	}()
	return nil
}

// VoiceResult feeds a speech recognizer outcome. Recognized text is submitted;
// a failure appends a notice instead.
func (c *Controller) VoiceResult(text string, err error) bool {
	if err == nil {
		return c.Submit(text)
	}

	kind, notice := domain.NoticeError, VoiceErrorText
	if errors.Is(err, ErrVoiceUnsupported) {
		kind, notice = domain.NoticeWarning, VoiceUnsupportedText
	}
	c.logger.Debug("voice input failed", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.lastActive = c.now()
	c.emit(messageAppended(c.state.AppendSystem(kind, notice)))
	return false
}

// OpenFAQ confirms a quick-access FAQ page in the transcript and returns its link.
func (c *Controller) OpenFAQ(category string) (FAQLink, error) {
	link, ok := LookupFAQ(category)
	if !ok {
		return FAQLink{}, fmt.Errorf("%w: %q", ErrUnknownFAQCategory, category)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return link, nil
	}
	c.lastActive = c.now()
	c.emit(messageAppended(c.state.AppendBot(faqConfirmation(link), FAQCategory, 1.0, nil)))
	return link, nil
}

// Snapshot returns a copy of the transcript and the busy flag.
func (c *Controller) Snapshot() ([]domain.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Messages(), c.state.Busy()
}

// Busy reports whether an exchange is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Busy()
}

// LastActive returns the time of the last event or settle.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Subscribe registers an observer and returns a function that removes it.
// The observer is called with the current transcript replayed as
// MessageAppended changes before any live change.
func (c *Controller) Subscribe(obs Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.state.messages {
		obs(messageAppended(m))
	}
	if c.state.Busy() {
		obs(busyChanged(true))
	}

	id := c.nextObs
	c.nextObs++
	c.observers[id] = obs
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// emit must be called with mu held.
func (c *Controller) emit(ch Change) {
	for _, obs := range c.observers {
		obs(ch)
	}
}

// Close cancels background work and waits for it. Further events are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.retireLocked()
	c.mu.Unlock()

	c.drain()
}

// retireIfIdle closes the controller to new events if nothing happened since
// cutoff and no exchange is outstanding. The caller must drain it afterwards.
func (c *Controller) retireIfIdle(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Busy() || !c.lastActive.Before(cutoff) {
		return false
	}
	c.retireLocked()
	return true
}

func (c *Controller) retireLocked() {
	c.closed = true
	c.pending = nil
	c.observers = make(map[int]Observer)
}

// drain cancels in-flight work and waits for it.
func (c *Controller) drain() {
	c.cancel()
	c.wg.Wait()
}
