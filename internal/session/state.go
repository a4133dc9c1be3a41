// Package session owns per-visitor conversation state and the controller that drives it.
package session

import (
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

// State is the append-only transcript of one session plus its busy flag.
// It is not safe for concurrent use; the Controller serializes access.
type State struct {
	messages []domain.Message
	busy     bool
	lastID   int64
	now      func() time.Time
}

// NewState returns an empty state.
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{now: now}
}

func (s *State) append(m domain.Message) domain.Message {
	s.lastID++
	m.ID = s.lastID
	m.CreatedAt = s.now()
	s.messages = append(s.messages, m)
	return m
}

// AppendUser appends a visitor turn.
func (s *State) AppendUser(text string) domain.Message {
	return s.append(domain.Message{Sender: domain.SenderUser, Text: text})
}

// AppendBot appends an assistant turn.
func (s *State) AppendBot(text, category string, confidence float64, responseTime *float64) domain.Message {
	return s.append(domain.Message{
		Sender:              domain.SenderBot,
		Text:                text,
		Category:            category,
		Confidence:          domain.Float(confidence),
		ResponseTimeSeconds: responseTime,
	})
}

// AppendSystem appends a notice. Notices are never sent to the assistant.
func (s *State) AppendSystem(kind domain.NoticeKind, text string) domain.Message {
	return s.append(domain.Message{Sender: domain.SenderSystem, Text: text, Kind: kind})
}

// Clear drops every message and seeds the welcome turn. IDs keep increasing.
func (s *State) Clear() domain.Message {
	s.messages = nil
	return s.AppendBot(WelcomeText, WelcomeCategory, 1.0, nil)
}

// Messages returns a copy of the transcript.
func (s *State) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *State) Len() int {
	return len(s.messages)
}

// Busy reports whether an exchange is outstanding.
func (s *State) Busy() bool {
	return s.busy
}

func (s *State) setBusy(b bool) {
	s.busy = b
}

// LastTurnID returns the id of the most recent user or bot message, or 0.
func (s *State) LastTurnID() int64 {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].IsTurn() {
			return s.messages[i].ID
		}
	}
	return 0
}
