// Package ledger keeps a SQLite log of every message the responder handled.
// It is a record only; the responder never consults it before replying.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one handled message.
type Entry struct {
	CycleID   string    `json:"cycle_id"`
	MessageID string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Sent      bool      `json:"sent"`
	Archived  bool      `json:"archived"`
	Error     string    `json:"error,omitempty"`
	Attempt   int       `json:"attempt"` // 1 for the first time a message is handled
	HandledAt time.Time `json:"handled_at"`
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path. An empty path or ":memory:" is in-memory.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := trimmed == "" || trimmed == ":memory:"
	if trimmed == "" {
		trimmed = ":memory:"
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the replies table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS replies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            cycle_id TEXT NOT NULL,
            message_id TEXT NOT NULL,
            thread_id TEXT NOT NULL,
            recipient TEXT NOT NULL,
            subject TEXT NOT NULL,
            sent INTEGER NOT NULL,
            archived INTEGER NOT NULL,
            error TEXT NOT NULL DEFAULT '',
            attempt INTEGER NOT NULL DEFAULT 1,
            handled_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_replies_message ON replies(message_id);`,
		`CREATE INDEX IF NOT EXISTS idx_replies_handled ON replies(handled_at DESC);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Record appends e, numbering it after the earlier entries for the same message.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.HandledAt.IsZero() {
		e.HandledAt = time.Now()
	}
	prior, err := s.CountByMessage(ctx, e.MessageID)
	if err != nil {
		return err
	}
	e.Attempt = prior + 1
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO replies (cycle_id, message_id, thread_id, recipient, subject, sent, archived, error, attempt, handled_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CycleID, e.MessageID, e.ThreadID, e.To, e.Subject,
		boolToInt(e.Sent), boolToInt(e.Archived), e.Error, e.Attempt, e.HandledAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record reply %s: %w", e.MessageID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, message_id, thread_id, recipient, subject, sent, archived, error, attempt, handled_at
         FROM replies ORDER BY handled_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			sent, archived  int
			handledAtMillis int64
		)
		if err := rows.Scan(&e.CycleID, &e.MessageID, &e.ThreadID, &e.To, &e.Subject,
			&sent, &archived, &e.Error, &e.Attempt, &handledAtMillis); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		e.Sent = sent != 0
		e.Archived = archived != 0
		e.HandledAt = time.UnixMilli(handledAtMillis)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return out, nil
}

// CountByMessage reports how many times a message has been handled.
// A value above one means the message was replied to again after a failed archive.
func (s *Store) CountByMessage(ctx context.Context, messageID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count replies for %s: %w", messageID, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
