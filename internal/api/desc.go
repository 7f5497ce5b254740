package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const servicePrefix = "chatalyst.v1."

// SessionServer reports daemon state.
type SessionServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

// SyncServer controls the sync session and streams bus events.
type SyncServer interface {
	StartSync(context.Context, *StartSyncRequest) (*StartSyncResponse, error)
	StopSync(context.Context, *StopSyncRequest) (*StopSyncResponse, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
}

// ConversationServer manages conversations.
type ConversationServer interface {
	List(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	Get(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	StartChat(context.Context, *StartChatRequest) (*ConversationIDResponse, error)
	CreateGroup(context.Context, *CreateGroupRequest) (*ConversationIDResponse, error)
	Delete(context.Context, *DeleteConversationRequest) (*Ack, error)
	SetMute(context.Context, *SetMuteRequest) (*Ack, error)
	SetTyping(context.Context, *SetTypingRequest) (*Ack, error)
}

// MessageServer reads and writes messages.
type MessageServer interface {
	List(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	Search(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	Send(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	Resend(context.Context, *ResendMessageRequest) (*Ack, error)
	Edit(context.Context, *EditMessageRequest) (*Ack, error)
	Delete(context.Context, *DeleteMessagesRequest) (*Ack, error)
	React(context.Context, *ReactRequest) (*Ack, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
}

// UserServer manages users and personas.
type UserServer interface {
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	CreatePersona(context.Context, *CreatePersonaRequest) (*CreatePersonaResponse, error)
	DeletePersona(context.Context, *DeletePersonaRequest) (*Ack, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*Ack, error)
	SetPresence(context.Context, *SetPresenceRequest) (*Ack, error)
	SetPushToken(context.Context, *SetPushTokenRequest) (*Ack, error)
	UpgradePremium(context.Context, *UpgradePremiumRequest) (*Ack, error)
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*structpb.Struct) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s eventStream) Send(m *structpb.Struct) error { return s.ServerStream.SendMsg(m) }

// unary adapts a typed method to a grpc.MethodDesc.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

const (
	sessionService      = servicePrefix + "SessionService"
	syncService         = servicePrefix + "SyncService"
	conversationService = servicePrefix + "ConversationService"
	messageService      = servicePrefix + "MessageService"
	userService         = servicePrefix + "UserService"
)

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionService,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(sessionService, "GetStatus", SessionServer.GetStatus),
	},
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: syncService,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(syncService, "StartSync", SyncServer.StartSync),
		unary(syncService, "StopSync", SyncServer.StopSync),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "WatchEvents",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(WatchEventsRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(SyncServer).WatchEvents(in, eventStream{stream})
		},
	}},
}

var conversationServiceDesc = grpc.ServiceDesc{
	ServiceName: conversationService,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(conversationService, "List", ConversationServer.List),
		unary(conversationService, "Get", ConversationServer.Get),
		unary(conversationService, "StartChat", ConversationServer.StartChat),
		unary(conversationService, "CreateGroup", ConversationServer.CreateGroup),
		unary(conversationService, "Delete", ConversationServer.Delete),
		unary(conversationService, "SetMute", ConversationServer.SetMute),
		unary(conversationService, "SetTyping", ConversationServer.SetTyping),
	},
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: messageService,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(messageService, "List", MessageServer.List),
		unary(messageService, "Search", MessageServer.Search),
		unary(messageService, "Send", MessageServer.Send),
		unary(messageService, "Resend", MessageServer.Resend),
		unary(messageService, "Edit", MessageServer.Edit),
		unary(messageService, "Delete", MessageServer.Delete),
		unary(messageService, "React", MessageServer.React),
		unary(messageService, "MarkRead", MessageServer.MarkRead),
	},
}

var userServiceDesc = grpc.ServiceDesc{
	ServiceName: userService,
	HandlerType: (*UserServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(userService, "ListUsers", UserServer.ListUsers),
		unary(userService, "CreatePersona", UserServer.CreatePersona),
		unary(userService, "DeletePersona", UserServer.DeletePersona),
		unary(userService, "UpdateProfile", UserServer.UpdateProfile),
		unary(userService, "SetPresence", UserServer.SetPresence),
		unary(userService, "SetPushToken", UserServer.SetPushToken),
		unary(userService, "UpgradePremium", UserServer.UpgradePremium),
	},
}

// Register adds every control service to s.
func Register(s *grpc.Server, session SessionServer, sync SyncServer, convs ConversationServer, msgs MessageServer, users UserServer) {
	s.RegisterService(&sessionServiceDesc, session)
	s.RegisterService(&syncServiceDesc, sync)
	s.RegisterService(&conversationServiceDesc, convs)
	s.RegisterService(&messageServiceDesc, msgs)
	s.RegisterService(&userServiceDesc, users)
}
