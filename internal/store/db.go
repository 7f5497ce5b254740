package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for the session's cache.db. The cache is a
// projection of the remote tree and can be deleted and rebuilt at any time.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// Counts summarises what the cache holds.
func (db *DB) Counts() (users, conversations, pending int64, err error) {
	err = db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM conversations),
		       (SELECT COUNT(*) FROM pending_messages)`).
		Scan(&users, &conversations, &pending)
	return users, conversations, pending, err
}
