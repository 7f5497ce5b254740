// Package responder makes AI personas speak in group conversations on a
// fixed cadence, and answer direct messages.
package responder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/ai"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/imagesearch"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// Cache is the read side the responder needs from the local cache.
type Cache interface {
	GroupConversations() ([]model.Conversation, error)
	GetConversation(id string) (*model.Conversation, error)
	UsersByID() (map[string]model.User, error)
}

// Writer is the remote write side: messages and typing indicators.
type Writer interface {
	AddMessage(ctx context.Context, conversationID string, m model.Message) (model.Message, error)
	SetTyping(ctx context.Context, conversationID, uid string, typing bool) error
}

// Options tunes the loop.
type Options struct {
	PollInterval time.Duration
	HistoryLimit int
	Policy       Policy
	Seed         int64
}

// Loop polls the cached group conversations and lets at most one AI speak
// per conversation per cycle. Conversations are handled one at a time.
type Loop struct {
	cache  Cache
	writer Writer
	gen    ai.Generator
	images imagesearch.Searcher
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options
	rng    *rand.Rand
	now    func() time.Time

	// speakMu serializes generations between the poll loop and direct replies.
	speakMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a responder loop. images may be nil to disable pictures.
func NewLoop(cache Cache, writer Writer, gen ai.Generator, images imagesearch.Searcher, b *bus.Bus, opts Options, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 20 * time.Second
	}
	if opts.Policy.Inactivity <= 0 {
		opts.Policy.Inactivity = 150 * time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Loop{
		cache:  cache,
		writer: writer,
		gen:    gen,
		images: images,
		bus:    b,
		logger: logger,
		opts:   opts,
		rng:    NewRand(seed),
		now:    time.Now,
	}
}

// Start runs the poll loop until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.opts.PollInterval)
		defer ticker.Stop()
		l.logger.Info("responder started", zap.Duration("interval", l.opts.PollInterval))
		for {
			select {
			case <-ticker.C:
				l.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for the current cycle to return. An
// in-flight generation is left to finish or fail on its own.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.logger.Info("responder stopped")
}

// RunOnce performs one poll cycle and returns how many messages were sent.
func (l *Loop) RunOnce(ctx context.Context) int {
	convs, err := l.cache.GroupConversations()
	if err != nil {
		l.logger.Error("failed to list group conversations", zap.Error(err))
		return 0
	}
	users, err := l.cache.UsersByID()
	if err != nil {
		l.logger.Error("failed to load users", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range convs {
		if ctx.Err() != nil {
			break
		}
		n, err := l.process(ctx, &convs[i], users)
		if err != nil {
			l.logger.Error("responder cycle failed for conversation",
				zap.String("conversation_id", convs[i].ID), zap.Error(err))
		}
		sent += n
	}
	return sent
}

func (l *Loop) process(ctx context.Context, conv *model.Conversation, users map[string]model.User) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	d := l.opts.Policy.Decide(conv, users, l.now(), l.rng)
	if !d.Speak {
		return 0, nil
	}
	l.logger.Debug("persona speaking",
		zap.String("conversation_id", conv.ID),
		zap.String("speaker", d.Speaker),
		zap.String("reason", string(d.Reason)))
	return l.Speak(ctx, conv, d.Speaker, users)
}

// Speak has speaker generate a reply in conv and sends it. The typing
// indicator is on for the duration of the generation.
func (l *Loop) Speak(ctx context.Context, conv *model.Conversation, speaker string, users map[string]model.User) (int, error) {
	l.speakMu.Lock()
	defer l.speakMu.Unlock()

	persona := users[speaker]
	persona.UID = speaker
	req := BuildRequest(conv, persona, users, l.opts.HistoryLimit)

	raw := l.generate(ctx, conv.ID, speaker, req)
	return l.emit(ctx, conv.ID, speaker, ParseReply(raw))
}

func (l *Loop) generate(ctx context.Context, conversationID, speaker string, req ai.Request) string {
	if err := l.writer.SetTyping(ctx, conversationID, speaker, true); err != nil {
		l.logger.Warn("failed to set typing", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	defer func() {
		if err := l.writer.SetTyping(context.WithoutCancel(ctx), conversationID, speaker, false); err != nil {
			l.logger.Warn("failed to clear typing", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}()

	raw, err := l.gen.Generate(ctx, req)
	if err != nil {
		l.logger.Warn("generation failed", zap.String("conversation_id", conversationID),
			zap.String("speaker", speaker), zap.Error(err))
		return Placeholder
	}
	return raw
}

func (l *Loop) emit(ctx context.Context, conversationID, speaker string, r Reply) (int, error) {
	sent := 0
	if r.Kind != ImageOnly && Sendable(r.Text) {
		if err := l.send(ctx, conversationID, model.Message{SenderID: speaker, Content: r.Text, Type: model.TypeText}); err != nil {
			return sent, err
		}
		sent++
	}
	if r.Kind == TextOnly || r.Query == "" {
		return sent, nil
	}
	if l.images == nil {
		l.logger.Debug("image search disabled; dropping image", zap.String("query", r.Query))
		return sent, nil
	}
	url, err := l.images.Search(ctx, r.Query)
	if err != nil {
		l.logger.Warn("image search failed", zap.String("query", r.Query), zap.Error(err))
		return sent, nil
	}
	if err := l.send(ctx, conversationID, model.Message{SenderID: speaker, Content: url, Type: model.TypeImage}); err != nil {
		return sent, err
	}
	return sent + 1, nil
}

func (l *Loop) send(ctx context.Context, conversationID string, m model.Message) error {
	m, err := l.writer.AddMessage(ctx, conversationID, m)
	if err != nil {
		return fmt.Errorf("send %s message: %w", m.Type, err)
	}
	l.bus.Emit(bus.ResponderSpoke, bus.MessageEvent{ConversationID: conversationID, Message: m})
	return nil
}
