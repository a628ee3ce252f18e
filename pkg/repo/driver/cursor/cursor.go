// Package cursor persists per-conversation read markers on the local device.
// Read state intentionally never leaves the machine, so a small sqlite file
// is used instead of the shared store.
package cursor

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS read_cursors (
	owner     TEXT NOT NULL,
	target    TEXT NOT NULL,
	marked_at INTEGER NOT NULL,
	PRIMARY KEY (owner, target)
);`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cursor store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cursor store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising cursor store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the marked-at timestamp in milliseconds, zero when the owner
// has never read the target conversation.
func (s *Store) Get(owner, target string) (int64, error) {
	var markedAt int64
	err := s.db.QueryRow(
		`SELECT marked_at FROM read_cursors WHERE owner = ? AND target = ?`,
		owner, target,
	).Scan(&markedAt)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading cursor for %s: %w", target, err)
	}
	return markedAt, nil
}

func (s *Store) Set(owner, target string, markedAt int64) error {
	_, err := s.db.Exec(
		`INSERT INTO read_cursors (owner, target, marked_at) VALUES (?, ?, ?)
		 ON CONFLICT (owner, target) DO UPDATE SET marked_at = excluded.marked_at`,
		owner, target, markedAt,
	)
	if err != nil {
		return fmt.Errorf("saving cursor for %s: %w", target, err)
	}
	return nil
}

func (s *Store) All(owner string) (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT target, marked_at FROM read_cursors WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]int64)
	for rows.Next() {
		var target string
		var markedAt int64
		if err := rows.Scan(&target, &markedAt); err != nil {
			return nil, fmt.Errorf("scanning cursor row: %w", err)
		}
		cursors[target] = markedAt
	}
	return cursors, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
