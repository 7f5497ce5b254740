package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		path          string
		coll, id, sub string
		wantErr       bool
	}{
		{"users", "users", "", "", false},
		{"users/u1", "users", "u1", "", false},
		{"/conversations/c1/messages/m1/", "conversations", "c1", "messages/m1", false},
		{"", "", "", "", true},
		{"users//x", "", "", "", true},
	}
	for _, tt := range tests {
		coll, id, sub, err := Split(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("Split(%q) err = %v", tt.path, err)
			continue
		}
		if coll != tt.coll || id != tt.id || sub != tt.sub {
			t.Errorf("Split(%q) = %q,%q,%q", tt.path, coll, id, sub)
		}
	}
}

func TestApplyNumericKeysStayObjects(t *testing.T) {
	doc, err := Apply(nil, "typing/123", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(doc), `{"typing":{`) {
		t.Errorf("doc = %s", doc)
	}
	v, ok := ValueAt(doc, "typing/123")
	if !ok || string(v) != "true" {
		t.Errorf("ValueAt = %s, %v", v, ok)
	}
}

func TestApplyEscapesDots(t *testing.T) {
	doc, err := Apply([]byte(`{}`), "reactions/a.b", "👍")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := ValueAt(doc, "reactions/a.b")
	if !ok || string(v) != `"👍"` {
		t.Errorf("ValueAt = %s, %v (doc %s)", v, ok, doc)
	}
}

func TestPlanOrdersParentFirst(t *testing.T) {
	writes, err := Plan(map[string]any{
		"conversations/c1/topic": "x",
		"conversations/c1":       map[string]string{"name": "n"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(writes) != 1 || writes[0].Ops[0].Sub != "" {
		t.Fatalf("writes = %+v", writes)
	}
	doc, err := writes[0].Apply(nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := ValueAt(doc, "topic"); !ok || string(v) != `"x"` {
		t.Errorf("topic lost: %s", doc)
	}
}

func TestPlanRejectsCollectionWrite(t *testing.T) {
	if _, err := Plan(map[string]any{"users": nil}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestSubscriptionCoalesces(t *testing.T) {
	sub := NewSubscription(nil)
	for i := 0; i < 5; i++ {
		sub.Offer(Change{Path: "p", Data: []byte{byte('0' + i)}})
	}
	c := <-sub.Changes()
	if string(c.Data) != "4" {
		t.Errorf("got %s, want latest snapshot", c.Data)
	}
	sub.Close()
	sub.Offer(Change{})
	if _, ok := <-sub.Changes(); ok {
		t.Error("changes channel still open after Close")
	}
}

func TestCloseOnDone(t *testing.T) {
	closed := make(chan struct{})
	sub := NewSubscription(func() { close(closed) })
	ctx, cancel := context.WithCancel(context.Background())
	CloseOnDone(ctx, sub)
	cancel()
	<-closed
}
