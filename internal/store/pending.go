package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// StagePending records an optimistic copy of a message before its remote
// write.
func (db *DB) StagePending(conversationID string, m model.Message) error {
	snap, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO pending_messages (conversation_id, msg_id, snapshot, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, 'sending', '', ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			status = 'sending',
			error_message = '',
			updated_at = excluded.updated_at`,
		conversationID, m.ID, string(snap), now, now)
	return err
}

// RemovePending drops the optimistic copy once the remote write is confirmed.
func (db *DB) RemovePending(conversationID, msgID string) error {
	_, err := db.Exec(`DELETE FROM pending_messages WHERE conversation_id = ? AND msg_id = ?`, conversationID, msgID)
	return err
}

// MarkPendingFailed keeps the optimistic copy and records why the remote
// write failed.
func (db *DB) MarkPendingFailed(conversationID, msgID, errMsg string) error {
	_, err := db.Exec(`
		UPDATE pending_messages SET status = 'failed', error_message = ?, updated_at = ?
		WHERE conversation_id = ? AND msg_id = ?`,
		errMsg, time.Now().UnixMilli(), conversationID, msgID)
	return err
}

// PendingMessages returns staged messages for a conversation, or for every
// conversation when conversationID is empty, oldest first.
func (db *DB) PendingMessages(conversationID string) ([]PendingMessage, error) {
	q := `SELECT conversation_id, snapshot, status, error_message, created_at FROM pending_messages`
	var args []any
	if conversationID != "" {
		q += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	q += ` ORDER BY created_at ASC, msg_id ASC`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PendingMessage
	for rows.Next() {
		var p PendingMessage
		var snap string
		if err := rows.Scan(&p.ConversationID, &snap, &p.Status, &p.ErrorMessage, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snap), &p.Message); err != nil {
			return nil, fmt.Errorf("decode pending message: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
