package api

import (
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// Ack is the response of calls that return nothing.
type Ack struct{}

// Session

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session          string `json:"session"`
	Principal        string `json:"principal,omitempty"`
	State            string `json:"state"`
	StateSinceUnixMs int64  `json:"stateSinceUnixMs"`
	UptimeMs         int64  `json:"uptimeMs"`
	Users            int64  `json:"users"`
	Conversations    int64  `json:"conversations"`
	Pending          int64  `json:"pending"`
	Listeners        int    `json:"listeners"`
}

// Sync

type StartSyncRequest struct {
	Principal string `json:"principal"`
}

type StartSyncResponse struct {
	State string `json:"state"`
}

type StopSyncRequest struct{}

type StopSyncResponse struct {
	State string `json:"state"`
}

// WatchEventsRequest selects events by kind prefix; empty streams all.
type WatchEventsRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// Conversations

type ConversationSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Group         bool     `json:"group"`
	Topic         string   `json:"topic,omitempty"`
	Participants  []string `json:"participants"`
	LastMessageAt int64    `json:"lastMessageAt"`
	LastPreview   string   `json:"lastPreview,omitempty"`
	LastSenderID  string   `json:"lastSenderId,omitempty"`
	Muted         bool     `json:"muted"`
	Typing        []string `json:"typing,omitempty"`
	Pending       int      `json:"pending"`
}

type ListConversationsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

type GetConversationRequest struct {
	ID string `json:"id"`
}

type GetConversationResponse struct {
	Summary    ConversationSummary `json:"summary"`
	Messages   []MessageView       `json:"messages"`
	MutedUntil int64               `json:"mutedUntil"`
}

type StartChatRequest struct {
	PeerID string `json:"peerId"`
}

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Topic   string   `json:"topic,omitempty"`
	Members []string `json:"members"`
}

type ConversationIDResponse struct {
	ConversationID string `json:"conversationId"`
}

type DeleteConversationRequest struct {
	ID string `json:"id"`
}

type SetMuteRequest struct {
	ID         string `json:"id"`
	MutedUntil int64  `json:"mutedUntil"`
}

type SetTypingRequest struct {
	ID     string `json:"id"`
	Typing bool   `json:"typing"`
}

// Messages

// MessageView is a message with its local delivery state.
type MessageView struct {
	model.Message
	Pending bool   `json:"pending,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type ListMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	BeforeTs       int64  `json:"beforeTs,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"hasMore"`
}

type SearchMessagesRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type SearchHit struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	SenderID       string `json:"senderId"`
	Body           string `json:"body"`
	Timestamp      int64  `json:"timestamp"`
	Snippet        string `json:"snippet"`
}

type SearchMessagesResponse struct {
	Results []SearchHit `json:"results"`
	HasMore bool        `json:"hasMore"`
}

type SendMessageRequest struct {
	ConversationID string            `json:"conversationId"`
	Content        string            `json:"content"`
	Type           model.MessageType `json:"type,omitempty"`
	ReplyToID      string            `json:"replyToId,omitempty"`
	AudioDuration  int64             `json:"audioDuration,omitempty"`
}

type SendMessageResponse struct {
	Message MessageView `json:"message"`
}

type ResendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type EditMessageRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Content        string `json:"content"`
}

type DeleteMessagesRequest struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

type ReactRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Emoji          string `json:"emoji"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversationId"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}

// Users

type ListUsersRequest struct {
	AIOnly bool `json:"aiOnly,omitempty"`
}

type ListUsersResponse struct {
	Users []model.User `json:"users"`
}

type CreatePersonaRequest struct {
	Persona model.User `json:"persona"`
}

type CreatePersonaResponse struct {
	UID string `json:"uid"`
}

type DeletePersonaRequest struct {
	UID string `json:"uid"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type SetPresenceRequest struct {
	Online bool `json:"online"`
}

type SetPushTokenRequest struct {
	Token string `json:"token"`
}

type UpgradePremiumRequest struct{}
