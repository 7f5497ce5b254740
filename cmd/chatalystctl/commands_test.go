package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/api"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFormatSummary(t *testing.T) {
	s := api.ConversationSummary{
		ID:            "c1",
		Name:          "Night owls",
		Group:         true,
		Muted:         true,
		Pending:       2,
		LastMessageAt: now.Add(-5 * time.Minute).UnixMilli(),
		LastPreview:   "see you",
	}
	got := formatSummary(s, now)
	for _, want := range []string{"Night owls", "5 minutes ago", "[group, muted, 2 pending]", "see you"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatSummary() = %q, missing %q", got, want)
		}
	}

	empty := formatSummary(api.ConversationSummary{ID: "c2", Name: "Quiet"}, now)
	if !strings.Contains(empty, "never") || strings.Contains(empty, "[") {
		t.Errorf("formatSummary(empty) = %q", empty)
	}
}

func TestFormatMessage(t *testing.T) {
	m := api.MessageView{
		Message: model.Message{ID: "m1", SenderID: "sam", Content: "hi", Type: model.TypeText, Edited: true},
		Pending: true,
	}
	got := formatMessage(m)
	if !strings.Contains(got, "sam") || !strings.HasSuffix(got, "hi (edited) [pending]") {
		t.Errorf("formatMessage() = %q", got)
	}

	m.Failure = "offline"
	if got := formatMessage(m); !strings.HasSuffix(got, "[failed: offline]") {
		t.Errorf("formatMessage(failed) = %q", got)
	}
}

func TestMuteValue(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		off  bool
		want int64
	}{
		{"forever", 0, false, model.MutedForever},
		{"unmute", time.Hour, true, 0},
		{"for an hour", time.Hour, false, now.Add(time.Hour).UnixMilli()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := muteValue(tt.d, tt.off, now); got != tt.want {
				t.Errorf("muteValue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseOnOff(t *testing.T) {
	if v, err := parseOnOff("ON"); err != nil || !v {
		t.Errorf("parseOnOff(ON) = %v, %v", v, err)
	}
	if v, err := parseOnOff("off"); err != nil || v {
		t.Errorf("parseOnOff(off) = %v, %v", v, err)
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("parseOnOff(maybe) should fail")
	}
}

func TestFormatUser(t *testing.T) {
	tests := []struct {
		user model.User
		want string
	}{
		{model.User{UID: "ai1", Name: "Aria", IsAI: true}, "ai"},
		{model.User{UID: "u1", Name: "Sam", Online: true}, "online"},
		{model.User{UID: "u2", Name: "Kim", LastSeen: now.Add(-2 * time.Hour).UnixMilli()}, "seen 2 hours ago"},
		{model.User{UID: "u3", Name: "Lee"}, "offline"},
	}
	for _, tt := range tests {
		if got := formatUser(tt.user, now); !strings.HasSuffix(got, tt.want) {
			t.Errorf("formatUser(%s) = %q, want suffix %q", tt.user.UID, got, tt.want)
		}
	}
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, &api.GetStatusResponse{
		Session:          "main",
		State:            "LIVE",
		StateSinceUnixMs: now.Add(-time.Minute).UnixMilli(),
		UptimeMs:         90_000,
		Users:            1234,
		Conversations:    7,
	}, now)
	out := buf.String()
	for _, want := range []string{"Principal:     -", "LIVE (since 1 minute ago)", "1m30s", "1,234"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}
