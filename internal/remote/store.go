// Package remote defines the hierarchical source-of-truth tree the daemon
// mirrors: users, conversations and the per-user conversation index.
package remote

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInvalidPath is returned for empty paths or paths the backend cannot address.
	ErrInvalidPath = errors.New("remote: invalid path")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("remote: store closed")
)

// Store is the remote tree. Values are JSON documents addressed by slash
// separated paths.
type Store interface {
	// Get returns the JSON value at path and whether it exists.
	Get(ctx context.Context, path string) ([]byte, bool, error)
	// Set replaces the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error
	// Update applies every path/value pair atomically. Nil values delete.
	Update(ctx context.Context, values map[string]any) error
	// Watch streams the value at path. The first change carries the current
	// value; later ones carry the latest snapshot, older undelivered
	// snapshots are dropped.
	Watch(ctx context.Context, path string) (*Subscription, error)
}

// Change is one snapshot delivered on a Subscription.
type Change struct {
	Path   string
	Data   []byte
	Exists bool
	Err    error
}

// Subscription is a push stream of changes for one path. Changes is closed
// after Close.
type Subscription struct {
	mu     sync.Mutex
	ch     chan Change
	done   chan struct{}
	closed bool
	cancel func()
}

// NewSubscription creates a subscription. cancel runs once on Close and
// releases the backend's resources.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{
		ch:     make(chan Change, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Changes returns the change stream.
func (s *Subscription) Changes() <-chan Change {
	return s.ch
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Offer delivers c, replacing any snapshot the consumer has not read yet.
// It never blocks and is a no-op after Close.
func (s *Subscription) Offer(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- c:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// CloseOnDone closes sub when ctx is cancelled.
func CloseOnDone(ctx context.Context, sub *Subscription) {
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
}
