// Package journal persists daemon lifecycle transitions in SQLite.
//
// The journal is an operator-facing audit trail: every start, interrupt,
// worker failure, and stop lands as a row in a database inside the daemon's
// var directory. It is strictly best-effort from the daemon's point of view;
// a broken journal never blocks the lifecycle.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event types recorded by the lifecycle controller.
const (
	TypeStarted      = "started"
	TypeInterrupted  = "interrupted"
	TypeWorkerFailed = "worker_failed"
	TypeStopped      = "stopped"
)

// Event is one recorded lifecycle transition.
type Event struct {
	ID        int64
	Type      string
	Detail    string
	PID       int
	CreatedAt time.Time
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    pid        INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lifecycle_events_created_at
    ON lifecycle_events (created_at DESC);
`

// Open initializes or connects to the journal database in dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "warden.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts one lifecycle event attributed to the current process.
func (s *Store) Record(ctx context.Context, eventType, detail string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO lifecycle_events (event_type, detail, pid, created_at) VALUES (?, ?, ?, ?)`,
		eventType,
		detail,
		os.Getpid(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", eventType, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, event_type, detail, pid, created_at
         FROM lifecycle_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Detail, &event.PID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			event.CreatedAt = ts
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
