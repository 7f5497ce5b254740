package api

import (
	"context"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/status"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// SessionService implements SessionServer.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	engine      *intsync.Engine
	db          *store.DB
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, machine *status.Machine, engine *intsync.Engine, db *store.DB) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		engine:      engine,
		db:          db,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	current := s.machine.Current()
	resp := &GetStatusResponse{
		Session:          s.sessionName,
		Principal:        s.engine.Principal(),
		State:            string(current),
		StateSinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:         time.Since(s.startedAt).Milliseconds(),
		Listeners:        s.engine.ListenerCount(),
	}
	if users, convs, pending, err := s.db.Counts(); err == nil {
		resp.Users = users
		resp.Conversations = convs
		resp.Pending = pending
	}
	return resp, nil
}
