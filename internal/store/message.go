package store

import (
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// ListMessages returns up to limit messages of a cached conversation older
// than beforeTs (0 means newest), newest first. Pending copies are included.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	c, err := db.GetConversation(conversationID)
	if err != nil || c == nil {
		return nil, err
	}
	sorted := c.SortedMessages()
	var out []model.Message
	for i := len(sorted) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeTs > 0 && sorted[i].Timestamp >= beforeTs {
			continue
		}
		out = append(out, sorted[i])
	}
	return out, nil
}
