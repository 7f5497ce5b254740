// Package outbox coordinates optimistic message writes: the local copy is
// visible before the remote round trip and stays pending if it fails.
package outbox

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
)

// ErrNotPending is returned by Resend for a message that is not waiting
// for confirmation.
var ErrNotPending = errors.New("outbox: message is not pending")

// MessageWriter performs the authoritative remote write of a message.
type MessageWriter interface {
	WriteMessage(ctx context.Context, conversationID string, m model.Message) error
}

// Sender stages, writes and confirms outgoing messages.
type Sender struct {
	db     *store.DB
	writer MessageWriter
	bus    *bus.Bus
	logger *zap.Logger
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, writer MessageWriter, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:     db,
		writer: writer,
		bus:    b,
		logger: logger,
	}
}

// Send stages an optimistic copy of m, writes it remotely and drops the
// copy once the write is confirmed. On failure the copy stays pending with
// the error recorded; it is not retried automatically. The staged copy has
// Sent unset; only the remote copy carries Sent.
func (s *Sender) Send(ctx context.Context, conversationID string, m model.Message) error {
	m.Pending = false
	m.Failure = ""
	staged := m
	staged.Sent = false
	if err := s.db.StagePending(conversationID, staged); err != nil {
		// The cache is a fast path only; the remote write still goes ahead.
		s.logger.Warn("failed to stage optimistic message", zap.Error(err),
			zap.String("conversation_id", conversationID), zap.String("msg_id", m.ID))
	}
	pending := staged
	pending.Pending = true
	s.bus.Emit(bus.MessagePending, bus.MessageEvent{ConversationID: conversationID, Message: pending})

	m.Sent = true
	if err := s.writer.WriteMessage(ctx, conversationID, m); err != nil {
		s.logger.Error("remote message write failed", zap.Error(err),
			zap.String("conversation_id", conversationID), zap.String("msg_id", m.ID))
		if mErr := s.db.MarkPendingFailed(conversationID, m.ID, err.Error()); mErr != nil {
			s.logger.Warn("failed to mark message pending", zap.Error(mErr), zap.String("msg_id", m.ID))
		}
		pending.Failure = err.Error()
		s.bus.Emit(bus.MessagePending, bus.MessageEvent{
			ConversationID: conversationID,
			Message:        pending,
			Error:          err.Error(),
		})
		return fmt.Errorf("write message %s: %w", m.ID, err)
	}

	if err := s.db.RemovePending(conversationID, m.ID); err != nil {
		s.logger.Warn("failed to drop confirmed optimistic message", zap.Error(err), zap.String("msg_id", m.ID))
	}
	s.logger.Debug("message sent", zap.String("conversation_id", conversationID), zap.String("msg_id", m.ID))
	s.bus.Emit(bus.MessageSent, bus.MessageEvent{ConversationID: conversationID, Message: m})
	return nil
}

// Resend retries one pending message on explicit request.
func (s *Sender) Resend(ctx context.Context, conversationID, msgID string) error {
	pending, err := s.db.PendingMessages(conversationID)
	if err != nil {
		return fmt.Errorf("load pending: %w", err)
	}
	for _, p := range pending {
		if p.Message.ID == msgID {
			return s.Send(ctx, conversationID, p.Message)
		}
	}
	return fmt.Errorf("resend %s: %w", msgID, ErrNotPending)
}

// Pending returns every message still waiting for remote confirmation.
func (s *Sender) Pending() ([]store.PendingMessage, error) {
	return s.db.PendingMessages("")
}
