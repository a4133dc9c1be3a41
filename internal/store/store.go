// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

// Repository defines the interface for persisting visitors and the exchange journal.
type Repository interface {
	// GetVisitor retrieves a visitor by id. It returns nil, nil when absent.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// RecordExchange appends one settled exchange to the journal.
	RecordExchange(ctx context.Context, ex *domain.Exchange) error

	// RecordFeedback appends one feedback click to the journal.
	RecordFeedback(ctx context.Context, fb *domain.Feedback) error

	// Stats aggregates the journal.
	Stats(ctx context.Context) (*domain.Stats, error)

	// PruneJournal deletes journal rows older than retention.
	PruneJournal(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
