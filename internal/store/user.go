package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// ReplaceUsers swaps the cached users for the given full collection snapshot.
func (db *DB) ReplaceUsers(users []model.User) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM users`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO users (uid, name, is_ai, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for i := range users {
		snap, err := json.Marshal(&users[i])
		if err != nil {
			return fmt.Errorf("marshal user %s: %w", users[i].UID, err)
		}
		if _, err := stmt.Exec(users[i].UID, users[i].Name, users[i].IsAI, string(snap), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertUser inserts or replaces a single user.
func (db *DB) UpsertUser(u *model.User) error {
	snap, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", u.UID, err)
	}
	_, err = db.Exec(`
		INSERT INTO users (uid, name, is_ai, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			is_ai = excluded.is_ai,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		u.UID, u.Name, u.IsAI, string(snap), time.Now().UnixMilli())
	return err
}

// GetUser returns a cached user, or nil if unknown.
func (db *DB) GetUser(uid string) (*model.User, error) {
	var snap string
	err := db.QueryRow(`SELECT snapshot FROM users WHERE uid = ?`, uid).Scan(&snap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal([]byte(snap), &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", uid, err)
	}
	return &u, nil
}

// ListUsers returns cached users ordered by name. aiOnly limits the result
// to personas.
func (db *DB) ListUsers(aiOnly bool) ([]model.User, error) {
	q := `SELECT snapshot FROM users`
	if aiOnly {
		q += ` WHERE is_ai = 1`
	}
	q += ` ORDER BY name COLLATE NOCASE, uid`
	rows, err := db.Query(q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var snap string
		if err := rows.Scan(&snap); err != nil {
			return nil, err
		}
		var u model.User
		if err := json.Unmarshal([]byte(snap), &u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UsersByID returns every cached user keyed by uid.
func (db *DB) UsersByID() (map[string]model.User, error) {
	users, err := db.ListUsers(false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.UID] = u
	}
	return byID, nil
}

// DeleteUser removes a cached user.
func (db *DB) DeleteUser(uid string) error {
	_, err := db.Exec(`DELETE FROM users WHERE uid = ?`, uid)
	return err
}
