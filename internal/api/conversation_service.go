package api

import (
	"context"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

const previewLen = 80

// ConversationService implements ConversationServer.
type ConversationService struct {
	db     *store.DB
	engine *intsync.Engine
}

// NewConversationService creates a new conversation service.
func NewConversationService(db *store.DB, engine *intsync.Engine) *ConversationService {
	return &ConversationService{db: db, engine: engine}
}

func (s *ConversationService) List(_ context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	convs, err := s.db.ListConversations(limit, req.Offset)
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	now := time.Now()
	out := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		out = append(out, summarize(&convs[i], now))
	}
	return &ListConversationsResponse{Conversations: out}, nil
}

func (s *ConversationService) Get(_ context.Context, req *GetConversationRequest) (*GetConversationResponse, error) {
	c, err := s.db.GetConversation(req.ID)
	if err != nil {
		return nil, toStatus("get conversation", err)
	}
	if c == nil {
		return nil, toStatus("get conversation", intsync.ErrNotFound)
	}
	msgs := c.SortedMessages()
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, view(m))
	}
	return &GetConversationResponse{
		Summary:    summarize(c, time.Now()),
		Messages:   views,
		MutedUntil: c.MutedUntil,
	}, nil
}

func (s *ConversationService) StartChat(ctx context.Context, req *StartChatRequest) (*ConversationIDResponse, error) {
	if req.PeerID == "" {
		return nil, invalid("peerId is required")
	}
	id, err := s.engine.StartChat(ctx, req.PeerID)
	if err != nil {
		return nil, toStatus("start chat", err)
	}
	return &ConversationIDResponse{ConversationID: id}, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*ConversationIDResponse, error) {
	if req.Name == "" {
		return nil, invalid("name is required")
	}
	id, err := s.engine.CreateGroup(ctx, req.Name, req.Topic, req.Members)
	if err != nil {
		return nil, toStatus("create group", err)
	}
	return &ConversationIDResponse{ConversationID: id}, nil
}

func (s *ConversationService) Delete(ctx context.Context, req *DeleteConversationRequest) (*Ack, error) {
	if err := s.engine.DeleteConversation(ctx, req.ID); err != nil {
		return nil, toStatus("delete conversation", err)
	}
	return &Ack{}, nil
}

func (s *ConversationService) SetMute(ctx context.Context, req *SetMuteRequest) (*Ack, error) {
	if req.MutedUntil < model.MutedForever {
		return nil, invalid("mutedUntil must be -1, 0 or an epoch ms")
	}
	if err := s.engine.SetMute(ctx, req.ID, req.MutedUntil); err != nil {
		return nil, toStatus("set mute", err)
	}
	return &Ack{}, nil
}

func (s *ConversationService) SetTyping(ctx context.Context, req *SetTypingRequest) (*Ack, error) {
	principal := s.engine.Principal()
	if principal == "" {
		return nil, toStatus("set typing", intsync.ErrNotSyncing)
	}
	if err := s.engine.SetTyping(ctx, req.ID, principal, req.Typing); err != nil {
		return nil, toStatus("set typing", err)
	}
	return &Ack{}, nil
}

func summarize(c *model.Conversation, now time.Time) ConversationSummary {
	sum := ConversationSummary{
		ID:            c.ID,
		Name:          c.Name,
		Group:         c.Group,
		Topic:         c.Topic,
		Participants:  c.ParticipantIDs(),
		LastMessageAt: c.LastMessageAt(),
		Muted:         c.IsMuted(now),
	}
	if last, ok := c.LastMessage(); ok {
		sum.LastPreview = model.Preview(last, previewLen)
		sum.LastSenderID = last.SenderID
	}
	for uid, on := range c.Typing {
		if on {
			sum.Typing = append(sum.Typing, uid)
		}
	}
	for _, m := range c.Messages {
		if m.Pending {
			sum.Pending++
		}
	}
	return sum
}

func view(m model.Message) MessageView {
	return MessageView{Message: m, Pending: m.Pending, Failure: m.Failure}
}
