package domain

import (
	"time"
)

// Sender identifies who produced a transcript turn.
type Sender string

const (
	// SenderUser marks text typed (or spoken) by the visitor.
	SenderUser Sender = "user"
	// SenderBot marks replies from the assistant, including local apologies.
	SenderBot Sender = "bot"
	// SenderSystem marks connectivity and acknowledgement notices.
	SenderSystem Sender = "system"
)

// NoticeKind is the severity of a system notice.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
)

// Message is one turn of the transcript. It is never modified after creation.
type Message struct {
	ID                  int64      `json:"id"`
	Sender              Sender     `json:"sender"`
	Text                string     `json:"text"`
	Category            string     `json:"category,omitempty"`
	Confidence          *float64   `json:"confidence,omitempty"`
	Kind                NoticeKind `json:"kind,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ResponseTimeSeconds *float64   `json:"response_time_seconds,omitempty"`
}

// IsTurn reports whether the message is a user or bot turn, i.e. something
// feedback may refer to.
func (m Message) IsTurn() bool {
	return m.Sender == SenderUser || m.Sender == SenderBot
}

// ConfidenceValue returns the confidence or 0 when absent.
func (m Message) ConfidenceValue() float64 {
	if m.Confidence == nil {
		return 0
	}
	return *m.Confidence
}

// Float returns a pointer to v for optional message fields.
func Float(v float64) *float64 {
	return &v
}
