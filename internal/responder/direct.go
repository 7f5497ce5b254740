package responder

import (
	"context"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// DirectReplier answers human messages in 1:1 conversations with a persona,
// through the same pipeline the group loop uses.
type DirectReplier struct {
	loop   *Loop
	cache  Cache
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDirectReplier creates a replier that speaks through loop.
func NewDirectReplier(loop *Loop, cache Cache, b *bus.Bus, logger *zap.Logger) *DirectReplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectReplier{loop: loop, cache: cache, bus: b, logger: logger}
}

// Start subscribes to sent messages.
func (r *DirectReplier) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe(bus.MessageSent, 64)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if p, ok := evt.Payload.(bus.MessageEvent); ok {
					r.handle(ctx, p)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and waits for the current reply.
func (r *DirectReplier) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *DirectReplier) handle(ctx context.Context, evt bus.MessageEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("direct reply panicked", zap.Any("panic", p))
		}
	}()

	users, err := r.cache.UsersByID()
	if err != nil {
		r.logger.Error("failed to load users", zap.Error(err))
		return
	}
	if users[evt.Message.SenderID].IsAI {
		return
	}
	conv, err := r.cache.GetConversation(evt.ConversationID)
	if err != nil || conv == nil || conv.Group {
		return
	}

	var persona string
	for _, uid := range conv.ParticipantIDs() {
		if uid != evt.Message.SenderID && users[uid].IsAI {
			persona = uid
			break
		}
	}
	if persona == "" {
		return
	}

	// The listener may not have delivered the message yet.
	if conv.Messages == nil {
		conv.Messages = make(map[string]model.Message)
	}
	conv.Messages[evt.Message.ID] = evt.Message

	if _, err := r.loop.Speak(ctx, conv, persona, users); err != nil {
		r.logger.Error("direct reply failed",
			zap.String("conversation_id", conv.ID), zap.String("persona", persona), zap.Error(err))
	}
}
