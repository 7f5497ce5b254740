package api

import (
	"context"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// UserService implements UserServer.
type UserService struct {
	db     *store.DB
	engine *intsync.Engine
}

// NewUserService creates a new user service.
func NewUserService(db *store.DB, engine *intsync.Engine) *UserService {
	return &UserService{db: db, engine: engine}
}

func (s *UserService) ListUsers(_ context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	users, err := s.db.ListUsers(req.AIOnly)
	if err != nil {
		return nil, toStatus("list users", err)
	}
	return &ListUsersResponse{Users: users}, nil
}

func (s *UserService) CreatePersona(ctx context.Context, req *CreatePersonaRequest) (*CreatePersonaResponse, error) {
	if req.Persona.Name == "" {
		return nil, invalid("persona name is required")
	}
	uid, err := s.engine.CreatePersona(ctx, req.Persona)
	if err != nil {
		return nil, toStatus("create persona", err)
	}
	return &CreatePersonaResponse{UID: uid}, nil
}

func (s *UserService) DeletePersona(ctx context.Context, req *DeletePersonaRequest) (*Ack, error) {
	if err := s.engine.DeletePersona(ctx, req.UID); err != nil {
		return nil, toStatus("delete persona", err)
	}
	return &Ack{}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*Ack, error) {
	err := s.engine.UpdateProfile(ctx, intsync.ProfileUpdate{Name: req.Name, Bio: req.Bio, AvatarURL: req.AvatarURL})
	if err != nil {
		return nil, toStatus("update profile", err)
	}
	return &Ack{}, nil
}

func (s *UserService) SetPresence(ctx context.Context, req *SetPresenceRequest) (*Ack, error) {
	if err := s.engine.UpdatePresence(ctx, req.Online); err != nil {
		return nil, toStatus("set presence", err)
	}
	return &Ack{}, nil
}

func (s *UserService) SetPushToken(ctx context.Context, req *SetPushTokenRequest) (*Ack, error) {
	if err := s.engine.SetPushToken(ctx, req.Token); err != nil {
		return nil, toStatus("set push token", err)
	}
	return &Ack{}, nil
}

func (s *UserService) UpgradePremium(ctx context.Context, _ *UpgradePremiumRequest) (*Ack, error) {
	if err := s.engine.UpgradePremium(ctx); err != nil {
		return nil, toStatus("upgrade premium", err)
	}
	return &Ack{}, nil
}
