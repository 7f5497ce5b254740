package bus

import (
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix, e.g. "message." or "sync.".
const (
	ConversationUpdated = "conversation.updated"
	ConversationRemoved = "conversation.removed"
	UsersUpdated        = "users.updated"
	MessageSent         = "message.sent"
	MessagePending      = "message.pending"
	SyncStarted         = "sync.started"
	SyncStopped         = "sync.stopped"
	SyncDegraded        = "sync.degraded"
	StatusChanged       = "sync.status_changed"
	ResponderSpoke      = "responder.spoke"
	NotifyPublished     = "notify.published"
)

// MessageEvent is the payload of message.* events.
type MessageEvent struct {
	ConversationID string        `json:"conversationId"`
	Message        model.Message `json:"message"`
	Error          string        `json:"error,omitempty"`
}

// ConversationEvent is the payload of conversation.* events.
type ConversationEvent struct {
	ConversationID string `json:"conversationId"`
}

// SyncEvent is the payload of sync.started, sync.stopped and sync.degraded.
type SyncEvent struct {
	Principal string `json:"principal"`
	Error     string `json:"error,omitempty"`
}

// UsersEvent is the payload of users.updated.
type UsersEvent struct {
	Count int `json:"count"`
}

// NotifyEvent is the payload of notify.published.
type NotifyEvent struct {
	ConversationID string `json:"conversationId"`
	Count          int    `json:"count"`
}
