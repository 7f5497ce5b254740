package model

import (
	"testing"
	"time"
)

func TestIsMuted(t *testing.T) {
	now := time.UnixMilli(10_000)
	tests := []struct {
		name  string
		until int64
		want  bool
	}{
		{"unmuted", Unmuted, false},
		{"forever", MutedForever, true},
		{"future", 20_000, true},
		{"expired", 5_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Conversation{MutedUntil: tt.until}
			if got := c.IsMuted(now); got != tt.want {
				t.Errorf("IsMuted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeRewritesIDs(t *testing.T) {
	c := &Conversation{Messages: map[string]Message{
		"k1": {ID: "wrong", Content: "a"},
		"k2": {Content: "b"},
	}}
	c.Normalize()
	for key, m := range c.Messages {
		if m.ID != key {
			t.Errorf("message %q has id %q", key, m.ID)
		}
	}
}

func TestSortedAndLastMessage(t *testing.T) {
	c := &Conversation{Messages: map[string]Message{
		"b": {ID: "b", Timestamp: 2},
		"a": {ID: "a", Timestamp: 2},
		"c": {ID: "c", Timestamp: 1},
	}}
	got := c.SortedMessages()
	want := []string{"c", "a", "b"}
	for i, m := range got {
		if m.ID != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, m.ID, want[i])
		}
	}
	last, ok := c.LastMessage()
	if !ok || last.ID != "b" {
		t.Errorf("LastMessage() = %q, want b", last.ID)
	}

	empty := &Conversation{}
	if _, ok := empty.LastMessage(); ok {
		t.Error("LastMessage() on empty conversation reported a message")
	}
}

func TestNewIDMonotonic(t *testing.T) {
	now := time.Now()
	prev := NewID(now)
	for i := 0; i < 100; i++ {
		next := NewID(now)
		if next <= prev {
			t.Fatalf("ids not increasing: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestPreview(t *testing.T) {
	if got := Preview(Message{Type: TypeImage, Content: "http://x"}, 10); got != "[image]" {
		t.Errorf("image preview = %q", got)
	}
	if got := Preview(Message{Type: TypeText, Content: "hello world"}, 5); got != "hello" {
		t.Errorf("text preview = %q", got)
	}
}
