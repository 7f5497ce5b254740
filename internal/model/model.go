package model

import (
	"sort"
	"time"
)

// MessageType discriminates message content.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
	TypeVideo MessageType = "video"
)

// Mute sentinels for Conversation.MutedUntil.
const (
	Unmuted      int64 = 0
	MutedForever int64 = -1
)

// User is a human account or an AI persona.
type User struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	AvatarUpdatedAt int64  `json:"avatarUpdatedAt,omitempty"`
	Personality     string `json:"personality,omitempty"`
	BackgroundStory string `json:"backgroundStory,omitempty"`
	Interests       string `json:"interests,omitempty"`
	SpeakingStyle   string `json:"speakingStyle,omitempty"`
	IsAI            bool   `json:"isAI,omitempty"`
	Online          bool   `json:"online,omitempty"`
	LastSeen        int64  `json:"lastSeen,omitempty"`
	PushToken       string `json:"pushToken,omitempty"`
	Bio             string `json:"bio,omitempty"`
	Premium         bool   `json:"premium,omitempty"`
	CreatedBy       string `json:"createdBy,omitempty"`
}

// Message is a single chat message. Pending and Failure are local-only and
// never written to the remote tree.
type Message struct {
	ID            string            `json:"id"`
	SenderID      string            `json:"senderId"`
	Content       string            `json:"content"`
	Timestamp     int64             `json:"timestamp"`
	Type          MessageType       `json:"type"`
	Reactions     map[string]string `json:"reactions,omitempty"`
	Edited        bool              `json:"edited,omitempty"`
	ReadBy        map[string]int64  `json:"readBy,omitempty"`
	ReplyToID     string            `json:"replyToId,omitempty"`
	ReplyPreview  string            `json:"replyPreview,omitempty"`
	ReplySender   string            `json:"replySender,omitempty"`
	AudioDuration int64             `json:"audioDuration,omitempty"`
	Sent          bool              `json:"sent"`

	Pending bool   `json:"-"`
	Failure string `json:"-"`
}

// Conversation is a 1:1 chat or a group, with every message embedded.
type Conversation struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Participants map[string]bool    `json:"participants"`
	Messages     map[string]Message `json:"messages,omitempty"`
	Group        bool               `json:"group"`
	Topic        string             `json:"topic,omitempty"`
	Typing       map[string]bool    `json:"typing,omitempty"`
	MutedUntil   int64              `json:"mutedUntil"`
}

// IsMuted reports whether notifications for the conversation are muted at now.
func (c *Conversation) IsMuted(now time.Time) bool {
	switch {
	case c.MutedUntil == MutedForever:
		return true
	case c.MutedUntil <= Unmuted:
		return false
	default:
		return now.UnixMilli() < c.MutedUntil
	}
}

// Normalize forces every message's ID to equal its key in the map.
func (c *Conversation) Normalize() {
	for key, m := range c.Messages {
		if m.ID != key {
			m.ID = key
			c.Messages[key] = m
		}
	}
}

// ParticipantIDs returns participant ids in sorted order.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for uid, in := range c.Participants {
		if in {
			ids = append(ids, uid)
		}
	}
	sort.Strings(ids)
	return ids
}

// SortedMessages returns messages ordered by timestamp, then id.
func (c *Conversation) SortedMessages() []Message {
	msgs := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	var last Message
	found := false
	for _, m := range c.Messages {
		if !found || m.Timestamp > last.Timestamp || (m.Timestamp == last.Timestamp && m.ID > last.ID) {
			last = m
			found = true
		}
	}
	return last, found
}

// LastMessageAt returns the timestamp of the most recent message, or 0.
func (c *Conversation) LastMessageAt() int64 {
	if m, ok := c.LastMessage(); ok {
		return m.Timestamp
	}
	return 0
}

// Preview renders a short, type-aware summary of a message.
func Preview(m Message, maxLen int) string {
	switch m.Type {
	case TypeImage:
		return "[image]"
	case TypeAudio:
		return "[audio]"
	case TypeVideo:
		return "[video]"
	}
	r := []rune(m.Content)
	if maxLen > 0 && len(r) > maxLen {
		return string(r[:maxLen])
	}
	return m.Content
}
