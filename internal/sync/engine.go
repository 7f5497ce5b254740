// Package sync mirrors the remote tree into the local cache and carries
// the client write path.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/outbox"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/status"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
)

var (
	// ErrNotSyncing is returned by writes that need a principal while no
	// session is running.
	ErrNotSyncing = errors.New("sync: not syncing")
	// ErrNotCreator is returned when deleting a persona made by someone else.
	ErrNotCreator = errors.New("sync: persona was created by another user")
	// ErrNotFound is returned when a referenced conversation or user is not cached.
	ErrNotFound = errors.New("sync: not found")
)

// Engine owns the remote subscriptions of one principal's session: the
// users collection, the principal's membership index and one listener per
// indexed conversation.
type Engine struct {
	db         *store.DB
	remote     remote.Store
	bus        *bus.Bus
	machine    *status.Machine
	logger     *zap.Logger
	outbox     *outbox.Sender
	reconciler *Reconciler
	now        func() time.Time

	// lifecycle serializes StartSyncing and StopSyncing so only one session
	// is ever installed.
	lifecycle gosync.Mutex
	mu        gosync.Mutex
	base      context.Context
	principal string
	cancel    context.CancelFunc
	usersSub  *remote.Subscription
	indexSub  *remote.Subscription
	listeners map[string]context.CancelFunc
	wg        gosync.WaitGroup
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, rs remote.Store, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		db:         db,
		remote:     rs,
		bus:        b,
		machine:    machine,
		logger:     logger,
		reconciler: NewReconciler(db, logger),
		now:        time.Now,
		base:       context.Background(),
		listeners:  make(map[string]context.CancelFunc),
	}
	e.outbox = outbox.NewSender(db, e, b, logger)
	return e
}

// Start binds the engine to the daemon's lifetime and resumes the last
// synced principal, if any.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.base = ctx
	e.mu.Unlock()

	principal, err := e.reconciler.LastPrincipal()
	if err != nil {
		e.logger.Warn("failed to read sync checkpoint", zap.Error(err))
		return
	}
	if principal == "" {
		return
	}
	if err := e.StartSyncing(ctx, principal); err != nil {
		e.logger.Error("failed to resume sync", zap.String("principal", principal), zap.Error(err))
	}
}

// Stop ends the session for good.
func (e *Engine) Stop() {
	e.StopSyncing()
	if err := e.machine.Transition(status.Stopped); err != nil {
		e.logger.Debug("stop transition skipped", zap.Error(err))
	}
}

// Principal returns the principal being synced, or "".
func (e *Engine) Principal() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.principal
}

// Outbox exposes the optimistic write coordinator.
func (e *Engine) Outbox() *outbox.Sender {
	return e.outbox
}

// ListenerCount returns the number of open per-conversation listeners.
func (e *Engine) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// StartSyncing subscribes to the users collection and the principal's
// membership index. A running session, for any principal, is stopped first.
func (e *Engine) StartSyncing(ctx context.Context, principal string) error {
	if principal == "" {
		return fmt.Errorf("start syncing: empty principal")
	}
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.stopSession()

	if cur := e.machine.Current(); cur == status.Degraded || cur == status.Stopped {
		_ = e.machine.Transition(status.Idle)
	}
	if err := e.machine.Transition(status.Syncing); err != nil {
		e.logger.Warn("unexpected state on sync start", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sessCtx, cancel := context.WithCancel(e.base)
	usersSub, err := e.remote.Watch(sessCtx, remote.Users)
	if err != nil {
		cancel()
		e.degradeLocked(principal, err)
		return fmt.Errorf("watch users: %w", err)
	}
	indexSub, err := e.remote.Watch(sessCtx, remote.IndexPath(principal))
	if err != nil {
		usersSub.Close()
		cancel()
		e.degradeLocked(principal, err)
		return fmt.Errorf("watch membership index: %w", err)
	}

	e.principal = principal
	e.cancel = cancel
	e.usersSub = usersSub
	e.indexSub = indexSub

	if err := e.reconciler.SetLastPrincipal(principal); err != nil {
		e.logger.Warn("failed to write sync checkpoint", zap.Error(err))
	}
	if pending, err := e.db.PendingMessages(""); err == nil && len(pending) > 0 {
		e.logger.Info("unconfirmed messages remain pending", zap.Int("count", len(pending)))
	}

	e.wg.Add(2)
	go e.runUsers(sessCtx, usersSub)
	go e.runIndex(sessCtx, principal, indexSub)

	e.logger.Info("sync started", zap.String("principal", principal))
	e.bus.Emit(bus.SyncStarted, bus.SyncEvent{Principal: principal})
	return nil
}

// StopSyncing closes every subscription of the session and clears the
// bookkeeping. Safe to call when nothing is syncing.
func (e *Engine) StopSyncing() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.stopSession()
}

// stopSession requires e.lifecycle.
func (e *Engine) stopSession() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	principal := e.principal
	e.cancel()
	for id, cancel := range e.listeners {
		cancel()
		delete(e.listeners, id)
	}
	e.usersSub.Close()
	e.indexSub.Close()
	e.cancel = nil
	e.usersSub = nil
	e.indexSub = nil
	e.principal = ""
	e.mu.Unlock()

	e.wg.Wait()

	if err := e.machine.Transition(status.Idle); err != nil {
		e.logger.Debug("idle transition skipped", zap.Error(err))
	}
	e.logger.Info("sync stopped", zap.String("principal", principal))
	e.bus.Emit(bus.SyncStopped, bus.SyncEvent{Principal: principal})
}

func (e *Engine) runUsers(ctx context.Context, sub *remote.Subscription) {
	defer e.wg.Done()
	for change := range sub.Changes() {
		if change.Err != nil {
			e.logger.Warn("users listener error", zap.Error(change.Err))
			continue
		}
		users, err := decodeUsers(change.Data)
		if err != nil {
			e.logger.Error("failed to decode users", zap.Error(err))
			continue
		}

		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		err = e.db.ReplaceUsers(users)
		e.mu.Unlock()
		if err != nil {
			e.logger.Error("failed to cache users", zap.Error(err))
			continue
		}
		e.bus.Emit(bus.UsersUpdated, bus.UsersEvent{Count: len(users)})
	}
}

func (e *Engine) runIndex(ctx context.Context, principal string, sub *remote.Subscription) {
	defer e.wg.Done()
	first := true
	for change := range sub.Changes() {
		if change.Err != nil {
			// Terminal for the session: conversation listeners go stale until
			// StartSyncing is called again.
			e.mu.Lock()
			if ctx.Err() == nil {
				sub.Close()
				e.degradeLocked(principal, change.Err)
			}
			e.mu.Unlock()
			return
		}
		ids, err := decodeIndex(change.Data)
		if err != nil {
			e.logger.Error("failed to decode membership index", zap.Error(err))
			continue
		}
		if !e.applyIndex(ctx, ids, first) {
			return
		}
		if first {
			first = false
			if err := e.machine.Transition(status.Live); err != nil {
				e.logger.Debug("live transition skipped", zap.Error(err))
			}
		}
	}
}

// applyIndex diffs the wanted conversation ids against the open listeners.
// It reports false once the session is gone.
func (e *Engine) applyIndex(ctx context.Context, want map[string]bool, prune bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}

	var removed []string
	for id, cancel := range e.listeners {
		if !want[id] {
			cancel()
			delete(e.listeners, id)
			removed = append(removed, id)
		}
	}
	if prune {
		stale, err := e.reconciler.Stale(want)
		if err != nil {
			e.logger.Warn("failed to list cached conversations", zap.Error(err))
		}
		removed = append(removed, stale...)
	}
	for _, id := range removed {
		if err := e.db.DeleteConversation(id); err != nil {
			e.logger.Error("failed to drop cached conversation", zap.String("conversation_id", id), zap.Error(err))
			continue
		}
		e.bus.Emit(bus.ConversationRemoved, bus.ConversationEvent{ConversationID: id})
	}

	for id := range want {
		if _, ok := e.listeners[id]; ok {
			continue
		}
		cctx, cancel := context.WithCancel(ctx)
		sub, err := e.remote.Watch(cctx, remote.ConversationPath(id))
		if err != nil {
			// Not recorded, so the next index change retries it.
			cancel()
			e.logger.Error("failed to watch conversation", zap.String("conversation_id", id), zap.Error(err))
			continue
		}
		e.listeners[id] = cancel
		e.wg.Add(1)
		go e.runConversation(cctx, id, sub)
	}

	if len(removed) > 0 {
		e.logger.Debug("membership index applied", zap.Int("listeners", len(e.listeners)), zap.Int("removed", len(removed)))
	}
	return true
}

func (e *Engine) runConversation(ctx context.Context, id string, sub *remote.Subscription) {
	defer e.wg.Done()
	for change := range sub.Changes() {
		if change.Err != nil {
			e.logger.Warn("conversation listener error", zap.String("conversation_id", id), zap.Error(change.Err))
			continue
		}
		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		err := e.applyConversation(id, change)
		e.mu.Unlock()
		if err != nil {
			e.logger.Error("failed to cache conversation", zap.String("conversation_id", id), zap.Error(err))
		}
	}
}

func (e *Engine) applyConversation(id string, change remote.Change) error {
	if !change.Exists {
		if err := e.db.DeleteConversation(id); err != nil {
			return err
		}
		e.bus.Emit(bus.ConversationRemoved, bus.ConversationEvent{ConversationID: id})
		return nil
	}
	var c model.Conversation
	if err := json.Unmarshal(change.Data, &c); err != nil {
		return fmt.Errorf("decode conversation: %w", err)
	}
	c.ID = id
	if err := e.db.ReplaceConversation(&c); err != nil {
		return err
	}
	e.bus.Emit(bus.ConversationUpdated, bus.ConversationEvent{ConversationID: id})
	return nil
}

func (e *Engine) degradeLocked(principal string, err error) {
	e.logger.Error("membership index listener failed; session degraded",
		zap.String("principal", principal), zap.Error(err))
	if tErr := e.machine.Transition(status.Degraded); tErr != nil {
		e.logger.Debug("degraded transition skipped", zap.Error(tErr))
	}
	e.bus.Emit(bus.SyncDegraded, bus.SyncEvent{Principal: principal, Error: err.Error()})
}

func decodeUsers(data []byte) ([]model.User, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var byID map[string]model.User
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(byID))
	for uid, u := range byID {
		u.UID = uid
		users = append(users, u)
	}
	return users, nil
}

func decodeIndex(data []byte) (map[string]bool, error) {
	ids := make(map[string]bool)
	if len(data) == 0 {
		return ids, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for id, v := range raw {
		if string(v) != "false" && string(v) != "null" {
			ids[id] = true
		}
	}
	return ids, nil
}
