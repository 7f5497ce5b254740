package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
)

// mockWriter records calls and returns configurable results.
type mockWriter struct {
	mu    sync.Mutex
	calls []writeCall
	err   error
	// seen captures whether the optimistic copy was visible during the write.
	db   *store.DB
	seen bool
}

type writeCall struct {
	ConversationID string
	MsgID          string
	Sent           bool
}

func (m *mockWriter) WriteMessage(_ context.Context, conversationID string, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, writeCall{ConversationID: conversationID, MsgID: msg.ID, Sent: msg.Sent})
	if m.db != nil {
		pending, _ := m.db.PendingMessages(conversationID)
		m.seen = len(pending) == 1 && !pending[0].Message.Sent
	}
	return m.err
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage() model.Message {
	return model.Message{ID: "m1", SenderID: "me", Content: "hello", Timestamp: 1000, Type: model.TypeText}
}

func TestSendConfirmsAndUnstages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	w := &mockWriter{db: db}
	s := NewSender(db, w, b, nil)

	ch, unsub := b.Subscribe(bus.MessageSent, 10)
	defer unsub()

	if err := s.Send(context.Background(), "c1", newMessage()); err != nil {
		t.Fatal(err)
	}

	if len(w.calls) != 1 || w.calls[0].MsgID != "m1" || !w.calls[0].Sent {
		t.Fatalf("calls = %+v, want one write of m1 flagged sent", w.calls)
	}
	if !w.seen {
		t.Error("unsent optimistic copy was not staged before the remote write")
	}
	pending, err := db.PendingMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want none after confirmation", pending)
	}

	select {
	case evt := <-ch:
		p := evt.Payload.(bus.MessageEvent)
		if p.ConversationID != "c1" || p.Message.ID != "m1" || !p.Message.Sent {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.sent")
	}
}

func TestSendFailureLeavesPending(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	w := &mockWriter{err: errors.New("permission denied")}
	s := NewSender(db, w, b, nil)

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	if err := s.Send(context.Background(), "c1", newMessage()); err == nil {
		t.Fatal("Send() should return the remote error")
	}

	pending, err := s.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Status != store.PendingFailed || pending[0].ErrorMessage != "permission denied" || pending[0].Message.Sent {
		t.Errorf("pending = %+v", pending[0])
	}

	// Events: staged, then failed; never sent.
	var kinds []string
	timeout := time.After(200 * time.Millisecond)
collect:
	for {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-timeout:
			break collect
		}
	}
	for _, k := range kinds {
		if k == bus.MessageSent {
			t.Errorf("unexpected %s after failed write", k)
		}
	}
	if len(kinds) != 2 {
		t.Errorf("events = %v, want two message.pending", kinds)
	}

	// No automatic retry happened.
	if len(w.calls) != 1 {
		t.Errorf("write calls = %d, want 1", len(w.calls))
	}
}

func TestResend(t *testing.T) {
	db := testDB(t)
	w := &mockWriter{err: errors.New("offline")}
	s := NewSender(db, w, bus.New(), nil)

	_ = s.Send(context.Background(), "c1", newMessage())
	w.err = nil
	if err := s.Resend(context.Background(), "c1", "m1"); err != nil {
		t.Fatal(err)
	}
	if pending, _ := s.Pending(); len(pending) != 0 {
		t.Errorf("pending after resend = %+v", pending)
	}
	if err := s.Resend(context.Background(), "c1", "m1"); !errors.Is(err, ErrNotPending) {
		t.Error("Resend() of a confirmed message should fail")
	}
}
