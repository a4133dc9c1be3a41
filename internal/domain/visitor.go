// Package domain contains core domain types for the helpdesk widget.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identity that may own several widget tabs.
type Visitor struct {
	VisitorID  string    `json:"visitor_id"`
	Label      string    `json:"label"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the visitor has been inactive.
// Returns 0 if LastSeenAt lies in the future.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(v.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}
