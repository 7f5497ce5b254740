// Package memdb is an in-process remote tree, used for tests and offline runs.
package memdb

import (
	"context"
	"strings"
	"sync"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
)

// DB holds every document in memory and fans changes out to watchers.
type DB struct {
	mu       sync.Mutex
	docs     map[string][]byte
	watchers map[int]*watcher
	next     int
	writeErr error
}

type watcher struct {
	coll string
	id   string
	sub  string
	path string
	s    *remote.Subscription
}

// New creates an empty tree.
func New() *DB {
	return &DB{
		docs:     make(map[string][]byte),
		watchers: make(map[int]*watcher),
	}
}

// FailWrites makes every subsequent write return err until called with nil.
func (db *DB) FailWrites(err error) {
	db.mu.Lock()
	db.writeErr = err
	db.mu.Unlock()
}

// BreakWatch delivers err to every watcher of path.
func (db *DB) BreakWatch(path string, err error) {
	path = strings.Trim(path, "/")
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, w := range db.watchers {
		if w.path == path {
			w.s.Offer(remote.Change{Path: path, Err: err})
		}
	}
}

// Watchers returns the number of open subscriptions.
func (db *DB) Watchers() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.watchers)
}

// Get implements remote.Store.
func (db *DB) Get(ctx context.Context, path string) ([]byte, bool, error) {
	coll, id, sub, err := remote.Split(path)
	if err != nil {
		return nil, false, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	data, ok, err := db.readLocked(coll, id, sub)
	return data, ok, err
}

// Set implements remote.Store.
func (db *DB) Set(ctx context.Context, path string, value any) error {
	return db.Update(ctx, map[string]any{path: value})
}

// Update implements remote.Store.
func (db *DB) Update(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	writes, err := remote.Plan(values)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.writeErr != nil {
		return db.writeErr
	}

	next := make(map[string][]byte, len(writes))
	for _, w := range writes {
		doc, err := w.Apply(db.docs[w.Key()])
		if err != nil {
			return err
		}
		next[w.Key()] = doc
	}
	for key, doc := range next {
		if doc == nil {
			delete(db.docs, key)
		} else {
			db.docs[key] = doc
		}
	}
	db.notifyLocked(writes)
	return nil
}

// Watch implements remote.Store.
func (db *DB) Watch(ctx context.Context, path string) (*remote.Subscription, error) {
	coll, id, sub, err := remote.Split(path)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	wid := db.next
	db.next++
	s := remote.NewSubscription(func() {
		db.mu.Lock()
		delete(db.watchers, wid)
		db.mu.Unlock()
	})
	w := &watcher{coll: coll, id: id, sub: sub, path: strings.Trim(path, "/"), s: s}
	db.watchers[wid] = w
	db.emitLocked(w)
	db.mu.Unlock()

	remote.CloseOnDone(ctx, s)
	return s, nil
}

func (db *DB) notifyLocked(writes []remote.DocWrite) {
	for _, w := range db.watchers {
		for _, dw := range writes {
			if dw.Collection == w.coll && (w.id == "" || w.id == dw.ID) {
				db.emitLocked(w)
				break
			}
		}
	}
}

func (db *DB) emitLocked(w *watcher) {
	data, ok, err := db.readLocked(w.coll, w.id, w.sub)
	w.s.Offer(remote.Change{Path: w.path, Data: data, Exists: ok, Err: err})
}

func (db *DB) readLocked(coll, id, sub string) ([]byte, bool, error) {
	if id == "" {
		prefix := coll + "/"
		docs := make(map[string][]byte)
		for key, doc := range db.docs {
			if strings.HasPrefix(key, prefix) {
				docs[strings.TrimPrefix(key, prefix)] = doc
			}
		}
		if len(docs) == 0 {
			return nil, false, nil
		}
		out, err := remote.JoinCollection(docs)
		return out, err == nil, err
	}
	data, ok := remote.ValueAt(db.docs[remote.DocKey(coll, id)], sub)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}
