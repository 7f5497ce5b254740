package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: ConversationUpdated, Payload: ConversationEvent{ConversationID: "c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != ConversationUpdated {
			t.Errorf("got kind %q, want %s", evt.Kind, ConversationUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

// A "message." subscriber sees both sent and pending copies but no sync traffic.
func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Emit(SyncStarted, nil)
	b.Emit(MessagePending, nil)
	b.Emit(StatusChanged, nil)
	b.Emit(MessageSent, nil)

	var got []string
	for range 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	if got[0] != MessagePending || got[1] != MessageSent {
		t.Errorf("kinds = %v", got)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyPrefixSeesEverything(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Emit(UsersUpdated, nil)
	b.Emit(ResponderSpoke, nil)
	if len(ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(ch))
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	unsub()

	b.Emit(SyncDegraded, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("users.", 1)
	defer unsub()

	b.Publish(Event{Kind: UsersUpdated, Payload: 1})
	b.Publish(Event{Kind: UsersUpdated, Payload: 2})

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want the first event", evt.Payload)
	}
}

func TestDroppedCounter(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("responder.", 1)
	defer unsub()

	for range 3 {
		b.Emit(ResponderSpoke, nil)
	}

	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestEmitStampsTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Emit(MessageSent, MessageEvent{ConversationID: "c1"})
	evt := <-ch
	if evt.Timestamp.IsZero() || evt.ID == "" {
		t.Error("Emit() left timestamp or id unset")
	}
	if p, ok := evt.Payload.(MessageEvent); !ok || p.ConversationID != "c1" {
		t.Errorf("payload = %#v", evt.Payload)
	}
}
