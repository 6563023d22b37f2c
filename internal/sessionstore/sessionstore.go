// Package sessionstore persists REPL session activity to SQLite (SPEC_FULL
// S4.10): an optional, REPL-transport-level recorder, enabled by the CLI's
// `--history PATH` flag. It has no bearing on language evaluation -- the
// language itself still has no persisted state (spec.md S6) -- this is
// purely a shell-history-style convenience.
//
// Grounded on the donor's internal/database package (database/sql plus a
// blank-imported driver, a struct wrapping *sql.DB with a small set of
// named methods), narrowed from a multi-driver security-scanning module
// down to the one table this spec actually needs, against the donor's own
// sqlite3 driver import.
package sessionstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_history (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	line       TEXT NOT NULL,
	result     TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	ts         INTEGER NOT NULL
);`

// Store wraps a SQLite-backed history table. A single Store may be shared
// across goroutines (e.g. several replserver connections) since database/sql
// pools and serializes access internally.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the SQLite database at path,
// ensuring the session_history table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one REPL line's outcome: the source line, the rendered
// result (top-of-stack or empty), and the error kind (empty on success).
func (s *Store) Record(sessionID string, seq int, line, result, errorKind string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_history (session_id, seq, line, result, error_kind, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, seq, line, result, errorKind, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sessionstore: record: %w", err)
	}
	return nil
}

// HistoryEntry is one recorded row, returned by Recent for inspection or
// replay tooling.
type HistoryEntry struct {
	SessionID string
	Seq       int
	Line      string
	Result    string
	ErrorKind string
	Timestamp time.Time
}

// Recent returns the last n entries recorded for sessionID, oldest first.
func (s *Store) Recent(sessionID string, n int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT session_id, seq, line, result, error_kind, ts FROM session_history
		 WHERE session_id = ? ORDER BY seq DESC LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: query recent: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ts int64
		if err := rows.Scan(&e.SessionID, &e.Seq, &e.Line, &e.Result, &e.ErrorKind, &ts); err != nil {
			return nil, fmt.Errorf("sessionstore: scan: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, rows.Err()
}
