package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

const (
	printedAtLayout = "02/01/2006, 15.04.05"
	turnTimeLayout  = "15:04"
)

// Transcript renders the session as printable plain text.
func (c *Controller) Transcript() string {
	messages, _ := c.Snapshot()
	return RenderTranscript(messages, c.now())
}

// RenderTranscript formats messages under the print header.
func RenderTranscript(messages []domain.Message, printedAt time.Time) string {
	var b strings.Builder
	b.WriteString(TranscriptTitle)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Dicetak pada: %s\n", printedAt.Format(printedAtLayout))
	b.WriteString(strings.Repeat("-", 60))
	b.WriteString("\n")

	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s", m.CreatedAt.Format(turnTimeLayout), senderLabel(m))
		if m.Sender == domain.SenderBot && m.Confidence != nil {
			if m.Category != "" {
				fmt.Fprintf(&b, " (%s, %.0f%%)", m.Category, *m.Confidence*100)
			} else {
				fmt.Fprintf(&b, " (%.0f%%)", *m.Confidence*100)
			}
		}
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func senderLabel(m domain.Message) string {
	switch m.Sender {
	case domain.SenderUser:
		return "Anda"
	case domain.SenderBot:
		return "Bot"
	default:
		if m.Kind != "" {
			return "Sistem/" + string(m.Kind)
		}
		return "Sistem"
	}
}
