// Package audit keeps a sqlite log of executed commands, one row per
// request across all sessions.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Entry is one recorded command execution. Only the command name is
// stored, never the full request line: register and login lines carry
// secrets.
type Entry struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username,omitempty"`
	Command   string `json:"command"`
	Status    string `json:"status"`
	At        int64  `json:"at"`
}

// Recorder receives command executions. Implementations must not block
// the session on failure.
type Recorder interface {
	Record(e Entry)
}

// NopRecorder discards everything. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(Entry) {}

// Log is a sqlite-backed Recorder.
type Log struct {
	db *sql.DB
}

// Init opens (creating if needed) the audit database at baseDir/audit.db
// and runs migrations. The baseDir parameter allows tests to use
// t.TempDir() instead of ~/.cubby.
func Init(baseDir string) (*Log, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "audit.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts one entry. Failures are swallowed: auditing is
// best-effort and must never fail a client request.
func (l *Log) Record(e Entry) {
	_, _ = l.db.Exec(
		`INSERT INTO commands (session_id, username, command, status, at) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Username, e.Command, e.Status, e.At,
	)
}

// Recent returns the newest n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT session_id, username, command, status, at
		 FROM commands ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, n)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.Username, &e.Command, &e.Status, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS commands (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  session_id TEXT NOT NULL,
		  username   TEXT,
		  command    TEXT NOT NULL,
		  status     TEXT NOT NULL,
		  at         INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_commands_session
		ON commands(session_id, id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// getUserVersion returns the current schema version (user_version pragma).
func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// setUserVersion sets the schema version (user_version pragma).
func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
