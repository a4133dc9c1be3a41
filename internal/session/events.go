package session

import "github.com/ashureev/helpdesk-widget/internal/domain"

// Event is an inbound action from a presentation adapter.
type Event interface {
	isEvent()
}

// SubmitEvent is typed text from the input box.
type SubmitEvent struct{ Text string }

// QuickReplyEvent is a suggestion chip click.
type QuickReplyEvent struct{ Text string }

// VoiceEvent is the outcome of a speech recognizer: text or an error.
type VoiceEvent struct {
	Text string
	Err  error
}

// ClearEvent resets the transcript.
type ClearEvent struct{}

// FeedbackEvent is a thumbs up or down.
type FeedbackEvent struct{ Sign domain.FeedbackSign }

// OpenFAQEvent opens a quick-access FAQ page.
type OpenFAQEvent struct{ Category string }

func (SubmitEvent) isEvent()     {}
func (QuickReplyEvent) isEvent() {}
func (VoiceEvent) isEvent()      {}
func (ClearEvent) isEvent()      {}
func (FeedbackEvent) isEvent()   {}
func (OpenFAQEvent) isEvent()    {}

// ChangeType names a Change for serialization.
type ChangeType string

const (
	ChangeMessageAppended ChangeType = "message"
	ChangeCleared         ChangeType = "cleared"
	ChangeBusy            ChangeType = "busy"
)

// Change is an outbound notification. Exactly one of the fields matching Type is set.
type Change struct {
	Type    ChangeType      `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
	Busy    *bool           `json:"busy,omitempty"`
}

func messageAppended(m domain.Message) Change {
	return Change{Type: ChangeMessageAppended, Message: &m}
}

func cleared(welcome domain.Message) Change {
	return Change{Type: ChangeCleared, Message: &welcome}
}

func busyChanged(b bool) Change {
	return Change{Type: ChangeBusy, Busy: &b}
}

// Observer receives changes in mutation order. It runs under the controller
// lock and must not block or call back into the controller.
type Observer func(Change)

// DispatchResult reports what an event did.
type DispatchResult struct {
	Accepted bool     `json:"accepted"`
	Busy     bool     `json:"busy"`
	FAQ      *FAQLink `json:"faq,omitempty"`
}
