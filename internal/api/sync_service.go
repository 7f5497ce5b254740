package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/status"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// SyncService implements SyncServer.
type SyncService struct {
	engine      *intsync.Engine
	bus         *bus.Bus
	machine     *status.Machine
	sessionName string
}

// NewSyncService creates a new sync service.
func NewSyncService(engine *intsync.Engine, b *bus.Bus, machine *status.Machine, sessionName string) *SyncService {
	return &SyncService{
		engine:      engine,
		bus:         b,
		machine:     machine,
		sessionName: sessionName,
	}
}

func (s *SyncService) StartSync(ctx context.Context, req *StartSyncRequest) (*StartSyncResponse, error) {
	principal := strings.TrimSpace(req.Principal)
	if principal == "" {
		return nil, invalid("principal is required")
	}
	if err := s.engine.StartSyncing(ctx, principal); err != nil {
		return nil, toStatus("start sync", err)
	}
	return &StartSyncResponse{State: string(s.machine.Current())}, nil
}

func (s *SyncService) StopSync(_ context.Context, _ *StopSyncRequest) (*StopSyncResponse, error) {
	s.engine.StopSyncing()
	return &StopSyncResponse{State: string(s.machine.Current())}, nil
}

func (s *SyncService) WatchEvents(req *WatchEventsRequest, stream EventStream) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			env, err := envelope(s.sessionName, evt)
			if err != nil {
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// envelope renders a bus event as a struct: id, session, kind,
// occurredAtUnixMs and the JSON form of the payload.
func envelope(session string, evt bus.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":               evt.ID,
		"session":          session,
		"kind":             evt.Kind,
		"occurredAtUnixMs": float64(evt.Timestamp.UnixMilli()),
	}
	if evt.Payload != nil {
		data, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", evt.Kind, err)
		}
		var payload any
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		fields["payload"] = payload
	}
	return structpb.NewStruct(fields)
}
