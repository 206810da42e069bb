// Package feedback implements the append-only feedback event store:
// user click/outcome signals persisted to SQLite and read back in
// windows by the adaptive ranker and offline analytics.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/aman-cerp/retrieval-core/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback_events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	query_id   TEXT NOT NULL,
	result_id  TEXT NOT NULL,
	position   INTEGER NOT NULL,
	dwell_ms   INTEGER NOT NULL DEFAULT 0,
	intent     TEXT NOT NULL,
	timestamp  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_events_timestamp ON feedback_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_feedback_events_query_id ON feedback_events(query_id);
`

// Store is an append-only SQLite-backed sink for FeedbackEvents.
type Store struct {
	db *sql.DB
}

// Open creates or opens the feedback store at path (":memory:" for an
// ephemeral store) in WAL mode, and ensures its schema exists.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create feedback store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feedback store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create feedback schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends event to the store, stamping a generated id and, if
// event.Timestamp is zero, the current time.
func (s *Store) Record(ctx context.Context, event model.FeedbackEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_events (id, kind, query_id, result_id, position, dwell_ms, intent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), string(event.Kind), event.QueryID, event.ResultID, event.Position, event.DwellMS, string(event.Intent), event.Timestamp)
	if err != nil {
		return fmt.Errorf("record feedback event: %w", err)
	}
	return nil
}

// Window returns every event recorded at or after since, ordered oldest
// first.
func (s *Store) Window(ctx context.Context, since time.Time) ([]model.FeedbackEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, query_id, result_id, position, dwell_ms, intent, timestamp
		FROM feedback_events
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query feedback window: %w", err)
	}
	defer rows.Close()

	var events []model.FeedbackEvent
	for rows.Next() {
		var e model.FeedbackEvent
		var kind, intent string
		if err := rows.Scan(&kind, &e.QueryID, &e.ResultID, &e.Position, &e.DwellMS, &intent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan feedback event: %w", err)
		}
		e.Kind = model.FeedbackEventKind(kind)
		e.Intent = model.Intent(intent)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
