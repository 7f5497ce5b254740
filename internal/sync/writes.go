package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
)

// Every write goes to the remote tree first. Failures are logged and
// returned; the listeners bring the outcome back into the cache.

func (e *Engine) session() (string, error) {
	p := e.Principal()
	if p == "" {
		return "", ErrNotSyncing
	}
	return p, nil
}

func (e *Engine) update(ctx context.Context, op string, values map[string]any) error {
	if err := e.remote.Update(ctx, values); err != nil {
		e.logger.Error("remote write failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WriteMessage stores m under its own id in the conversation's messages map.
func (e *Engine) WriteMessage(ctx context.Context, conversationID string, m model.Message) error {
	return e.update(ctx, "add message", map[string]any{
		remote.MessagePath(conversationID, m.ID): m,
	})
}

// AddMessage fills in id, sender, timestamp and type where unset and sends
// the message through the optimistic outbox. The returned message is the
// one written.
func (e *Engine) AddMessage(ctx context.Context, conversationID string, m model.Message) (model.Message, error) {
	now := e.now()
	if m.ID == "" {
		m.ID = model.NewID(now)
	}
	if m.SenderID == "" {
		p, err := e.session()
		if err != nil {
			return m, err
		}
		m.SenderID = p
	}
	if m.Timestamp == 0 {
		m.Timestamp = now.UnixMilli()
	}
	if m.Type == "" {
		m.Type = model.TypeText
	}
	err := e.outbox.Send(ctx, conversationID, m)
	m.Sent = err == nil
	return m, err
}

// EditMessage replaces a message's content and flags it edited. Returns
// ErrNotFound when the message is not on the remote tree.
func (e *Engine) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	_, ok, err := e.remote.Get(ctx, remote.MessagePath(conversationID, messageID))
	if err != nil {
		e.logger.Error("remote read failed", zap.String("op", "edit message"), zap.Error(err))
		return fmt.Errorf("edit message: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return e.update(ctx, "edit message", map[string]any{
		remote.MessageFieldPath(conversationID, messageID, "content"): content,
		remote.MessageFieldPath(conversationID, messageID, "edited"):  true,
	})
}

// DeleteMessages removes messages in one atomic update.
func (e *Engine) DeleteMessages(ctx context.Context, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	values := make(map[string]any, len(messageIDs))
	for _, id := range messageIDs {
		values[remote.MessagePath(conversationID, id)] = nil
	}
	return e.update(ctx, "delete messages", values)
}

// ToggleReaction sets the principal's reaction, or clears it when the same
// emoji is already set.
func (e *Engine) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	path := remote.MessageFieldPath(conversationID, messageID, "reactions", p)
	cur, ok, err := e.remote.Get(ctx, path)
	if err != nil {
		e.logger.Error("remote read failed", zap.String("op", "toggle reaction"), zap.Error(err))
		return fmt.Errorf("toggle reaction: %w", err)
	}
	var value any = emoji
	if ok {
		var existing string
		if json.Unmarshal(cur, &existing) == nil && existing == emoji {
			value = nil
		}
	}
	return e.update(ctx, "toggle reaction", map[string]any{path: value})
}

// MarkRead stamps a read receipt on every message of the conversation the
// principal has not sent or read yet. Returns how many were marked.
func (e *Engine) MarkRead(ctx context.Context, conversationID string) (int, error) {
	p, err := e.session()
	if err != nil {
		return 0, err
	}
	c, err := e.db.GetConversation(conversationID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, ErrNotFound
	}
	now := e.now().UnixMilli()
	values := make(map[string]any)
	for id, m := range c.Messages {
		if m.Pending || m.SenderID == p {
			continue
		}
		if _, read := m.ReadBy[p]; read {
			continue
		}
		values[remote.MessageFieldPath(conversationID, id, "readBy", p)] = now
	}
	if len(values) == 0 {
		return 0, nil
	}
	return len(values), e.update(ctx, "mark read", values)
}

// SetTyping turns a typing indicator on or off for uid.
func (e *Engine) SetTyping(ctx context.Context, conversationID, uid string, typing bool) error {
	var value any
	if typing {
		value = true
	}
	return e.update(ctx, "set typing", map[string]any{remote.TypingPath(conversationID, uid): value})
}

// SetMute sets mutedUntil: 0 unmutes, -1 mutes forever, else epoch ms.
func (e *Engine) SetMute(ctx context.Context, conversationID string, until int64) error {
	if until < model.MutedForever {
		return fmt.Errorf("set mute: invalid value %d", until)
	}
	return e.update(ctx, "set mute", map[string]any{
		remote.ConversationPath(conversationID) + "/mutedUntil": until,
	})
}

// StartChat returns the principal's cached 1:1 with other, creating the
// conversation and both index entries when none exists.
func (e *Engine) StartChat(ctx context.Context, other string) (string, error) {
	p, err := e.session()
	if err != nil {
		return "", err
	}
	if other == "" || other == p {
		return "", fmt.Errorf("start chat: invalid peer %q", other)
	}

	existing, err := e.db.DirectConversation(p, other)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	name := other
	if u, err := e.db.GetUser(other); err == nil && u != nil && u.Name != "" {
		name = u.Name
	}
	id := model.NewID(e.now())
	conv := model.Conversation{
		ID:           id,
		Name:         name,
		Participants: map[string]bool{p: true, other: true},
	}
	err = e.update(ctx, "start chat", map[string]any{
		remote.ConversationPath(id):      conv,
		remote.IndexEntryPath(p, id):     true,
		remote.IndexEntryPath(other, id): true,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateGroup writes the conversation and every member's index entry in
// one atomic update. The principal is always a member.
func (e *Engine) CreateGroup(ctx context.Context, name, topic string, members []string) (string, error) {
	p, err := e.session()
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("create group: empty name")
	}
	participants := map[string]bool{p: true}
	for _, m := range members {
		if m != "" {
			participants[m] = true
		}
	}

	id := model.NewID(e.now())
	values := map[string]any{
		remote.ConversationPath(id): model.Conversation{
			ID:           id,
			Name:         name,
			Participants: participants,
			Group:        true,
			Topic:        topic,
		},
	}
	for uid := range participants {
		values[remote.IndexEntryPath(uid, id)] = true
	}
	if err := e.update(ctx, "create group", values); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteConversation removes a group and every member's index entry, or for
// a 1:1 only the principal's own index entry.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	c, err := e.db.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if c == nil || !c.Group {
		return e.update(ctx, "leave conversation", map[string]any{
			remote.IndexEntryPath(p, conversationID): nil,
		})
	}
	values := map[string]any{remote.ConversationPath(conversationID): nil}
	for uid := range c.Participants {
		values[remote.IndexEntryPath(uid, conversationID)] = nil
	}
	values[remote.IndexEntryPath(p, conversationID)] = nil
	return e.update(ctx, "delete group", values)
}

// UpdatePresence records the principal as online or offline.
func (e *Engine) UpdatePresence(ctx context.Context, online bool) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	return e.update(ctx, "update presence", map[string]any{
		remote.UserPath(p) + "/online":   online,
		remote.UserPath(p) + "/lastSeen": e.now().UnixMilli(),
	})
}

// ProfileUpdate carries the profile fields to change; empty fields are kept.
type ProfileUpdate struct {
	Name      string
	Bio       string
	AvatarURL string
}

// UpdateProfile edits the principal's profile.
func (e *Engine) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	values := make(map[string]any)
	if upd.Name != "" {
		values[remote.UserPath(p)+"/name"] = upd.Name
	}
	if upd.Bio != "" {
		values[remote.UserPath(p)+"/bio"] = upd.Bio
	}
	if upd.AvatarURL != "" {
		values[remote.UserPath(p)+"/avatarUrl"] = upd.AvatarURL
		values[remote.UserPath(p)+"/avatarUpdatedAt"] = e.now().UnixMilli()
	}
	if len(values) == 0 {
		return nil
	}
	return e.update(ctx, "update profile", values)
}

// SetPushToken stores the device token notifications are sent to.
func (e *Engine) SetPushToken(ctx context.Context, token string) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	var value any
	if token != "" {
		value = token
	}
	return e.update(ctx, "set push token", map[string]any{remote.UserPath(p) + "/pushToken": value})
}

// UpgradePremium flags the principal as premium.
func (e *Engine) UpgradePremium(ctx context.Context) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	return e.update(ctx, "upgrade premium", map[string]any{remote.UserPath(p) + "/premium": true})
}

// CreatePersona adds an AI user owned by the principal and returns its uid.
func (e *Engine) CreatePersona(ctx context.Context, persona model.User) (string, error) {
	p, err := e.session()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(persona.Name) == "" {
		return "", fmt.Errorf("create persona: empty name")
	}
	persona.UID = "ai_" + model.NewID(e.now())
	persona.IsAI = true
	persona.CreatedBy = p
	persona.Online = false
	persona.PushToken = ""
	if err := e.update(ctx, "create persona", map[string]any{remote.UserPath(persona.UID): persona}); err != nil {
		return "", err
	}
	return persona.UID, nil
}

// DeletePersona removes an AI user. Only its creator may delete it.
func (e *Engine) DeletePersona(ctx context.Context, uid string) error {
	p, err := e.session()
	if err != nil {
		return err
	}
	data, ok, err := e.remote.Get(ctx, remote.UserPath(uid))
	if err != nil {
		e.logger.Error("remote read failed", zap.String("op", "delete persona"), zap.Error(err))
		return fmt.Errorf("delete persona: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("delete persona: decode: %w", err)
	}
	if !u.IsAI || u.CreatedBy != p {
		return ErrNotCreator
	}
	return e.update(ctx, "delete persona", map[string]any{remote.UserPath(uid): nil})
}
