package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn         *grpc.ClientConn
	Session      *SessionClient
	Sync         *SyncClient
	Conversation *ConversationClient
	Message      *MessageClient
	User         *UserClient
}

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient builds typed service clients over conn. Every call uses the
// JSON codec.
func NewClient(conn *grpc.ClientConn) *Client {
	cc := caller{conn: conn}
	return &Client{
		conn:         conn,
		Session:      &SessionClient{cc},
		Sync:         &SyncClient{cc},
		Conversation: &ConversationClient{cc},
		Message:      &MessageClient{cc},
		User:         &UserClient{cc},
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

type caller struct {
	conn *grpc.ClientConn
}

func (c caller) invoke(ctx context.Context, service, method string, req, resp any) error {
	return c.conn.Invoke(ctx, "/"+service+"/"+method, req, resp, grpc.CallContentSubtype(CodecName))
}

func call[Resp any](ctx context.Context, c caller, service, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.invoke(ctx, service, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type SessionClient struct{ c caller }

func (s *SessionClient) GetStatus(ctx context.Context, req *GetStatusRequest) (*GetStatusResponse, error) {
	return call[GetStatusResponse](ctx, s.c, sessionService, "GetStatus", req)
}

type SyncClient struct{ c caller }

func (s *SyncClient) StartSync(ctx context.Context, req *StartSyncRequest) (*StartSyncResponse, error) {
	return call[StartSyncResponse](ctx, s.c, syncService, "StartSync", req)
}

func (s *SyncClient) StopSync(ctx context.Context, req *StopSyncRequest) (*StopSyncResponse, error) {
	return call[StopSyncResponse](ctx, s.c, syncService, "StopSync", req)
}

// EventReceiver reads envelopes from WatchEvents.
type EventReceiver struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event envelope.
func (r *EventReceiver) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := r.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WatchEvents opens the event stream. Cancel ctx to end it.
func (s *SyncClient) WatchEvents(ctx context.Context, req *WatchEventsRequest) (*EventReceiver, error) {
	desc := &syncServiceDesc.Streams[0]
	stream, err := s.c.conn.NewStream(ctx, desc, "/"+syncService+"/"+desc.StreamName, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventReceiver{stream: stream}, nil
}

type ConversationClient struct{ c caller }

func (s *ConversationClient) List(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	return call[ListConversationsResponse](ctx, s.c, conversationService, "List", req)
}

func (s *ConversationClient) Get(ctx context.Context, req *GetConversationRequest) (*GetConversationResponse, error) {
	return call[GetConversationResponse](ctx, s.c, conversationService, "Get", req)
}

func (s *ConversationClient) StartChat(ctx context.Context, req *StartChatRequest) (*ConversationIDResponse, error) {
	return call[ConversationIDResponse](ctx, s.c, conversationService, "StartChat", req)
}

func (s *ConversationClient) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*ConversationIDResponse, error) {
	return call[ConversationIDResponse](ctx, s.c, conversationService, "CreateGroup", req)
}

func (s *ConversationClient) Delete(ctx context.Context, req *DeleteConversationRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, conversationService, "Delete", req)
}

func (s *ConversationClient) SetMute(ctx context.Context, req *SetMuteRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, conversationService, "SetMute", req)
}

func (s *ConversationClient) SetTyping(ctx context.Context, req *SetTypingRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, conversationService, "SetTyping", req)
}

type MessageClient struct{ c caller }

func (s *MessageClient) List(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return call[ListMessagesResponse](ctx, s.c, messageService, "List", req)
}

func (s *MessageClient) Search(ctx context.Context, req *SearchMessagesRequest) (*SearchMessagesResponse, error) {
	return call[SearchMessagesResponse](ctx, s.c, messageService, "Search", req)
}

func (s *MessageClient) Send(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return call[SendMessageResponse](ctx, s.c, messageService, "Send", req)
}

func (s *MessageClient) Resend(ctx context.Context, req *ResendMessageRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, messageService, "Resend", req)
}

func (s *MessageClient) Edit(ctx context.Context, req *EditMessageRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, messageService, "Edit", req)
}

func (s *MessageClient) Delete(ctx context.Context, req *DeleteMessagesRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, messageService, "Delete", req)
}

func (s *MessageClient) React(ctx context.Context, req *ReactRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, messageService, "React", req)
}

func (s *MessageClient) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	return call[MarkReadResponse](ctx, s.c, messageService, "MarkRead", req)
}

type UserClient struct{ c caller }

func (s *UserClient) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	return call[ListUsersResponse](ctx, s.c, userService, "ListUsers", req)
}

func (s *UserClient) CreatePersona(ctx context.Context, req *CreatePersonaRequest) (*CreatePersonaResponse, error) {
	return call[CreatePersonaResponse](ctx, s.c, userService, "CreatePersona", req)
}

func (s *UserClient) DeletePersona(ctx context.Context, req *DeletePersonaRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, userService, "DeletePersona", req)
}

func (s *UserClient) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, userService, "UpdateProfile", req)
}

func (s *UserClient) SetPresence(ctx context.Context, req *SetPresenceRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, userService, "SetPresence", req)
}

func (s *UserClient) SetPushToken(ctx context.Context, req *SetPushTokenRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, userService, "SetPushToken", req)
}

func (s *UserClient) UpgradePremium(ctx context.Context, req *UpgradePremiumRequest) (*Ack, error) {
	return call[Ack](ctx, s.c, userService, "UpgradePremium", req)
}
