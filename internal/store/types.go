package store

import "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"

// Pending message statuses.
const (
	PendingSending = "sending"
	PendingFailed  = "failed"
)

// PendingMessage is an optimistic local copy of a message whose remote
// write has not been confirmed.
type PendingMessage struct {
	ConversationID string
	Message        model.Message
	Status         string
	ErrorMessage   string
	CreatedAt      int64
}

// SearchResult holds a cached message hit with a search snippet.
type SearchResult struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Body           string
	Timestamp      int64
	Snippet        string
}
