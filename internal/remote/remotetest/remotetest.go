// Package remotetest holds behaviour checks shared by every remote.Store backend.
package remotetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) remote.Store) {
	t.Run("SetGetNested", func(t *testing.T) { testSetGetNested(t, newStore(t)) })
	t.Run("UpdateAtomicMultiDoc", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("DeletePrunesEmptyDoc", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("WatchDocument", func(t *testing.T) { testWatchDocument(t, newStore(t)) })
	t.Run("WatchCollection", func(t *testing.T) { testWatchCollection(t, newStore(t)) })
	t.Run("WatchClose", func(t *testing.T) { testWatchClose(t, newStore(t)) })
}

// Next waits for the next change on sub.
func Next(t *testing.T, sub *remote.Subscription) remote.Change {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		if !ok {
			t.Fatal("subscription closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	return remote.Change{}
}

// WaitFor reads changes until match returns true.
func WaitFor(t *testing.T, sub *remote.Subscription, match func(remote.Change) bool) remote.Change {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-sub.Changes():
			if !ok {
				t.Fatal("subscription closed")
			}
			if match(c) {
				return c
			}
		case <-deadline:
			t.Fatal("timeout waiting for matching change")
		}
	}
}

func testSetGetNested(t *testing.T, s remote.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "conversations/c1", map[string]any{"name": "Trip", "group": true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "conversations/c1/messages/m1/content", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "conversations/c1/typing/42", true); err != nil {
		t.Fatal(err)
	}

	data, ok, err := s.Get(ctx, "conversations/c1/messages/m1/content")
	if err != nil || !ok {
		t.Fatalf("Get nested: ok=%v err=%v", ok, err)
	}
	if string(data) != `"hello"` {
		t.Errorf("content = %s", data)
	}

	data, ok, err = s.Get(ctx, "conversations/c1")
	if err != nil || !ok {
		t.Fatalf("Get doc: ok=%v err=%v", ok, err)
	}
	var doc struct {
		Name   string          `json:"name"`
		Typing map[string]bool `json:"typing"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Name != "Trip" || !doc.Typing["42"] {
		t.Errorf("doc = %+v", doc)
	}

	if _, ok, _ := s.Get(ctx, "conversations/missing"); ok {
		t.Error("missing doc reported as existing")
	}
}

func testUpdate(t *testing.T, s remote.Store) {
	ctx := context.Background()
	err := s.Update(ctx, map[string]any{
		"conversations/g1":        map[string]any{"name": "G", "participants": map[string]bool{"a": true, "b": true}},
		"user-conversations/a/g1": true,
		"user-conversations/b/g1": true,
		"conversations/g1/topic":  "films",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"user-conversations/a/g1", "user-conversations/b/g1", "conversations/g1/topic"} {
		if _, ok, err := s.Get(ctx, p); err != nil || !ok {
			t.Errorf("%s missing after update (err=%v)", p, err)
		}
	}
}

func testDelete(t *testing.T, s remote.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "user-conversations/a/c1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "user-conversations/a/c1", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "user-conversations/a"); ok {
		t.Error("empty index document should be removed")
	}
}

func testWatchDocument(t *testing.T, s remote.Store) {
	ctx := context.Background()
	sub, err := s.Watch(ctx, "user-conversations/a")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if c := Next(t, sub); c.Exists {
		t.Errorf("initial snapshot of empty index exists: %s", c.Data)
	}
	if err := s.Set(ctx, "user-conversations/a/c1", true); err != nil {
		t.Fatal(err)
	}
	c := WaitFor(t, sub, func(c remote.Change) bool { return c.Exists })
	var idx map[string]bool
	if err := json.Unmarshal(c.Data, &idx); err != nil {
		t.Fatal(err)
	}
	if !idx["c1"] {
		t.Errorf("index = %v", idx)
	}
}

func testWatchCollection(t *testing.T, s remote.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "users/u1", map[string]any{"uid": "u1", "name": "Ann"}); err != nil {
		t.Fatal(err)
	}
	sub, err := s.Watch(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if c := Next(t, sub); !c.Exists {
		t.Fatal("initial collection snapshot missing")
	}
	if err := s.Set(ctx, "users/u2", map[string]any{"uid": "u2", "name": "Bo"}); err != nil {
		t.Fatal(err)
	}
	WaitFor(t, sub, func(c remote.Change) bool {
		var all map[string]json.RawMessage
		_ = json.Unmarshal(c.Data, &all)
		return len(all) == 2
	})
}

func testWatchClose(t *testing.T, s remote.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.Watch(ctx, "conversations/c1")
	if err != nil {
		t.Fatal(err)
	}
	Next(t, sub)
	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
	sub.Close()
}
