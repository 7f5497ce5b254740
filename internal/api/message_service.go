package api

import (
	"context"
	"strings"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

const defaultPageSize = 50

// MessageService implements MessageServer.
type MessageService struct {
	db     *store.DB
	engine *intsync.Engine
}

// NewMessageService creates a new message service.
func NewMessageService(db *store.DB, engine *intsync.Engine) *MessageService {
	return &MessageService{db: db, engine: engine}
}

func (s *MessageService) List(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	msgs, err := s.db.ListMessages(req.ConversationID, req.BeforeTs, limit)
	if err != nil {
		return nil, toStatus("list messages", err)
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, view(m))
	}
	return &ListMessagesResponse{Messages: views, HasMore: len(msgs) == limit}, nil
}

func (s *MessageService) Search(_ context.Context, req *SearchMessagesRequest) (*SearchMessagesResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, invalid("query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	results, err := s.db.SearchMessages(req.Query, req.ConversationID, limit)
	if err != nil {
		return nil, toStatus("search messages", err)
	}
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ConversationID: r.ConversationID,
			MessageID:      r.MessageID,
			SenderID:       r.SenderID,
			Body:           r.Body,
			Timestamp:      r.Timestamp,
			Snippet:        r.Snippet,
		})
	}
	return &SearchMessagesResponse{Results: hits, HasMore: len(results) == limit}, nil
}

// Send writes a message as the principal. A failed remote write still
// returns the message, marked pending, together with the error.
func (s *MessageService) Send(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	if req.ConversationID == "" {
		return nil, invalid("conversationId is required")
	}
	typ := req.Type
	if typ == "" {
		typ = model.TypeText
	}
	if typ == model.TypeText && strings.TrimSpace(req.Content) == "" {
		return nil, invalid("content is required")
	}
	if s.engine.Principal() == "" {
		return nil, toStatus("send message", intsync.ErrNotSyncing)
	}

	m := model.Message{Content: req.Content, Type: typ, AudioDuration: req.AudioDuration}
	if req.ReplyToID != "" {
		m.ReplyToID = req.ReplyToID
		if c, err := s.db.GetConversation(req.ConversationID); err == nil && c != nil {
			if orig, ok := c.Messages[req.ReplyToID]; ok {
				m.ReplyPreview = model.Preview(orig, previewLen)
				m.ReplySender = orig.SenderID
			}
		}
	}

	sent, err := s.engine.AddMessage(ctx, req.ConversationID, m)
	if err != nil {
		return nil, toStatus("send message "+sent.ID, err)
	}
	return &SendMessageResponse{Message: view(sent)}, nil
}

func (s *MessageService) Resend(ctx context.Context, req *ResendMessageRequest) (*Ack, error) {
	if err := s.engine.Outbox().Resend(ctx, req.ConversationID, req.MessageID); err != nil {
		return nil, toStatus("resend message", err)
	}
	return &Ack{}, nil
}

func (s *MessageService) Edit(ctx context.Context, req *EditMessageRequest) (*Ack, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, invalid("content is required")
	}
	if err := s.engine.EditMessage(ctx, req.ConversationID, req.MessageID, req.Content); err != nil {
		return nil, toStatus("edit message", err)
	}
	return &Ack{}, nil
}

func (s *MessageService) Delete(ctx context.Context, req *DeleteMessagesRequest) (*Ack, error) {
	if err := s.engine.DeleteMessages(ctx, req.ConversationID, req.MessageIDs); err != nil {
		return nil, toStatus("delete messages", err)
	}
	return &Ack{}, nil
}

func (s *MessageService) React(ctx context.Context, req *ReactRequest) (*Ack, error) {
	if req.Emoji == "" {
		return nil, invalid("emoji is required")
	}
	if err := s.engine.ToggleReaction(ctx, req.ConversationID, req.MessageID, req.Emoji); err != nil {
		return nil, toStatus("react", err)
	}
	return &Ack{}, nil
}

func (s *MessageService) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	n, err := s.engine.MarkRead(ctx, req.ConversationID)
	if err != nil {
		return nil, toStatus("mark read", err)
	}
	return &MarkReadResponse{Marked: n}, nil
}
