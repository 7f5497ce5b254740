package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// ReplaceConversation overwrites the whole cached row with a server
// snapshot. There is no field-level merge: the last write wins. The
// search index for the conversation is rebuilt from the snapshot.
func (db *DB) ReplaceConversation(c *model.Conversation) error {
	c.Normalize()
	snap, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", c.ID, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, name, is_group, last_message_at, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_group = excluded.is_group,
			last_message_at = excluded.last_message_at,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Group, c.LastMessageAt(), string(snap), time.Now().UnixMilli())
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE conversation_id = ?`, c.ID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO messages_fts (body, conversation_id, msg_id, sender_id, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for id, m := range c.Messages {
		if m.Type != model.TypeText || m.Content == "" {
			continue
		}
		if _, err := stmt.Exec(m.Content, c.ID, id, m.SenderID, m.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetConversation returns the cached conversation, with optimistic messages
// the snapshot does not contain yet merged in and flagged Pending. Returns
// nil if the conversation is not cached.
func (db *DB) GetConversation(id string) (*model.Conversation, error) {
	var snap string
	err := db.QueryRow(`SELECT snapshot FROM conversations WHERE id = ?`, id).Scan(&snap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := decodeConversation(snap)
	if err != nil {
		return nil, err
	}
	pending, err := db.PendingMessages(id)
	if err != nil {
		return nil, err
	}
	mergePending(c, pending)
	return c, nil
}

// ListConversations returns cached conversations, most recent activity first.
func (db *DB) ListConversations(limit, offset int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT snapshot FROM conversations
		ORDER BY last_message_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []model.Conversation
	for rows.Next() {
		var snap string
		if err := rows.Scan(&snap); err != nil {
			return nil, err
		}
		c, err := decodeConversation(snap)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pending, err := db.PendingMessages("")
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		for i := range convs {
			mergePending(&convs[i], pending)
		}
	}
	return convs, nil
}

// GroupConversations returns every cached group conversation.
func (db *DB) GroupConversations() ([]model.Conversation, error) {
	return db.conversationsByKind(true)
}

// DirectConversation returns the id of the cached 1:1 between a and b, or
// "" when there is none. Every cached 1:1 is considered.
func (db *DB) DirectConversation(a, b string) (string, error) {
	convs, err := db.conversationsByKind(false)
	if err != nil {
		return "", err
	}
	for _, c := range convs {
		if len(c.Participants) == 2 && c.Participants[a] && c.Participants[b] {
			return c.ID, nil
		}
	}
	return "", nil
}

func (db *DB) conversationsByKind(group bool) ([]model.Conversation, error) {
	rows, err := db.Query(`SELECT snapshot FROM conversations WHERE is_group = ? ORDER BY id`, group)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []model.Conversation
	for rows.Next() {
		var snap string
		if err := rows.Scan(&snap); err != nil {
			return nil, err
		}
		c, err := decodeConversation(snap)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// ConversationIDs returns the ids of every cached conversation.
func (db *DB) ConversationIDs() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteConversation drops the cached row, its search entries and any
// optimistic messages staged for it.
func (db *DB) DeleteConversation(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM conversations WHERE id = ?`,
		`DELETE FROM messages_fts WHERE conversation_id = ?`,
		`DELETE FROM pending_messages WHERE conversation_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func decodeConversation(snap string) (*model.Conversation, error) {
	var c model.Conversation
	if err := json.Unmarshal([]byte(snap), &c); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &c, nil
}

func mergePending(c *model.Conversation, pending []PendingMessage) {
	for _, p := range pending {
		if p.ConversationID != c.ID {
			continue
		}
		if _, ok := c.Messages[p.Message.ID]; ok {
			continue
		}
		if c.Messages == nil {
			c.Messages = make(map[string]model.Message)
		}
		m := p.Message
		m.Sent = false
		m.Pending = true
		m.Failure = p.ErrorMessage
		c.Messages[m.ID] = m
	}
}
