// Package notify fans sent messages out as push notifications to the other
// human members of a conversation.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

const previewLen = 100

// Cache is the read side the notifier needs.
type Cache interface {
	GetConversation(id string) (*model.Conversation, error)
	UsersByID() (map[string]model.User, error)
}

// Recipients builds the pushes for message m in conv. Nothing is sent for a
// muted conversation; the sender, AI personas, online users and users
// without a push token are skipped.
func Recipients(conv *model.Conversation, users map[string]model.User, m model.Message, now time.Time) []Push {
	if conv.IsMuted(now) {
		return nil
	}
	sender := users[m.SenderID]
	senderName := sender.Name
	if senderName == "" {
		senderName = m.SenderID
	}
	title, body := senderName, model.Preview(m, previewLen)
	if conv.Group {
		title = conv.Name
		body = senderName + ": " + body
	}

	var pushes []Push
	for _, uid := range conv.ParticipantIDs() {
		u := users[uid]
		if uid == m.SenderID || u.IsAI || u.Online || u.PushToken == "" {
			continue
		}
		pushes = append(pushes, Push{
			Title:          title,
			Body:           body,
			ConversationID: conv.ID,
			Token:          u.PushToken,
			RecipientID:    uid,
			MessageID:      m.ID,
		})
	}
	return pushes
}

// Notifier publishes pushes for every sent message.
type Notifier struct {
	cache  Cache
	pub    Publisher
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a new notifier.
func NewNotifier(cache Cache, pub Publisher, b *bus.Bus, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{cache: cache, pub: pub, bus: b, logger: logger, now: time.Now}
}

// Start subscribes to sent messages.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	ch, unsub := n.bus.Subscribe(bus.MessageSent, 256)

	go func() {
		defer close(n.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if p, ok := evt.Payload.(bus.MessageEvent); ok {
					n.handle(ctx, p)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and closes the publisher.
func (n *Notifier) Stop() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
	if err := n.pub.Close(); err != nil {
		n.logger.Warn("failed to close push publisher", zap.Error(err))
	}
}

func (n *Notifier) handle(ctx context.Context, evt bus.MessageEvent) {
	conv, err := n.cache.GetConversation(evt.ConversationID)
	if err != nil || conv == nil {
		n.logger.Debug("no cached conversation for push", zap.String("conversation_id", evt.ConversationID), zap.Error(err))
		return
	}
	users, err := n.cache.UsersByID()
	if err != nil {
		n.logger.Error("failed to load users", zap.Error(err))
		return
	}

	published := 0
	for _, p := range Recipients(conv, users, evt.Message, n.now()) {
		if err := n.pub.Publish(ctx, p); err != nil {
			n.logger.Warn("push publish failed",
				zap.String("conversation_id", p.ConversationID),
				zap.String("recipient", p.RecipientID), zap.Error(err))
			continue
		}
		published++
	}
	if published > 0 {
		n.bus.Emit(bus.NotifyPublished, bus.NotifyEvent{ConversationID: evt.ConversationID, Count: published})
	}
}
