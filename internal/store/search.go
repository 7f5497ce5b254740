package store

// SearchMessages performs a full-text search over cached message bodies.
func (db *DB) SearchMessages(query string, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT conversation_id, msg_id, sender_id, body, timestamp,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != "" {
		q += " AND conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ConversationID, &r.MessageID, &r.SenderID, &r.Body, &r.Timestamp, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
