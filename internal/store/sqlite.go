package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes journal writes to keep SQLITE_BUSY rare
	now     func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at);

	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		user_text TEXT NOT NULL,
		reply_text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_outcome ON exchanges(outcome);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		message_id INTEGER NOT NULL,
		sign TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetVisitor retrieves a visitor by id.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, label, last_seen_at, created_at, updated_at
		FROM visitors WHERE visitor_id = ?`

	row := s.db.QueryRowContext(ctx, query, visitorID)

	var v domain.Visitor
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&v.VisitorID, &v.Label, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)

	return &v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, label, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		label = excluded.label,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		v.VisitorID, v.Label,
		v.LastSeenAt.Unix(), v.CreatedAt.Unix(), v.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET last_seen_at = ?, updated_at = ? WHERE visitor_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), s.now().Unix(), visitorID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "visitor_id", visitorID)
	}

	return nil
}

// RecordExchange appends one settled exchange to the journal.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	query := `
		INSERT INTO exchanges (
			id, visitor_id, session_id, user_text, reply_text,
			category, confidence, outcome, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.writeWithRetry(ctx, "record exchange", func() error {
		_, err := s.db.ExecContext(ctx, query,
			ex.ID, ex.VisitorID, ex.SessionID, ex.UserText, ex.ReplyText,
			ex.Category, ex.Confidence, string(ex.Outcome),
			ex.Latency.Milliseconds(), ex.CreatedAt.Unix(),
		)
		return err
	})
}

// RecordFeedback appends one feedback click to the journal.
func (s *SQLiteStore) RecordFeedback(ctx context.Context, fb *domain.Feedback) error {
	query := `
		INSERT INTO feedback (visitor_id, session_id, message_id, sign, created_at)
		VALUES (?, ?, ?, ?, ?)`

	return s.writeWithRetry(ctx, "record feedback", func() error {
		_, err := s.db.ExecContext(ctx, query,
			fb.VisitorID, fb.SessionID, fb.MessageID, string(fb.Sign), fb.CreatedAt.Unix(),
		)
		return err
	})
}

// writeWithRetry runs fn with exponential backoff on SQLite lock contention.
func (s *SQLiteStore) writeWithRetry(ctx context.Context, op string, fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var err error
	for i := 0; i < writeRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == writeRetries-1 {
			break
		}

		delay := writeBaseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("journal write hit SQLITE_BUSY, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Stats aggregates the journal.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		ByOutcome:      make(map[string]int64),
		CategoryCounts: make(map[string]int64),
	}

	var avgLatency sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(latency_ms) FROM exchanges`,
	).Scan(&stats.TotalExchanges, &avgLatency)
	if err != nil {
		return nil, fmt.Errorf("count exchanges: %w", err)
	}
	stats.AverageLatencyMs = avgLatency.Float64

	var avgConfidence sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG(confidence) FROM exchanges WHERE outcome = ?`, string(domain.OutcomeSuccess),
	).Scan(&avgConfidence)
	if err != nil {
		return nil, fmt.Errorf("average confidence: %w", err)
	}
	stats.AverageConfidence = avgConfidence.Float64

	if err := s.countInto(ctx, stats.ByOutcome,
		`SELECT outcome, COUNT(*) FROM exchanges GROUP BY outcome`); err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	if err := s.countInto(ctx, stats.CategoryCounts,
		`SELECT category, COUNT(*) FROM exchanges WHERE outcome = 'success' AND category != '' GROUP BY category`); err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}

	signs := make(map[string]int64)
	if err := s.countInto(ctx, signs, `SELECT sign, COUNT(*) FROM feedback GROUP BY sign`); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	stats.PositiveFeedback = signs[string(domain.FeedbackPositive)]
	stats.NegativeFeedback = signs[string(domain.FeedbackNegative)]

	threshold := s.now().Add(-24 * time.Hour).Unix()
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visitors WHERE last_seen_at >= ?`, threshold,
	).Scan(&stats.ActiveVisitors24h)
	if err != nil {
		return nil, fmt.Errorf("count active visitors: %w", err)
	}

	return stats, nil
}

func (s *SQLiteStore) countInto(ctx context.Context, dst map[string]int64, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close count rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

// PruneJournal deletes journal rows older than retention.
func (s *SQLiteStore) PruneJournal(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := s.now().Add(-retention).Unix()

	var total int64
	err := s.writeWithRetry(ctx, "prune journal", func() error {
		total = 0
		for _, table := range []string{"exchanges", "feedback"} {
			result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, threshold)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
