package responder

import (
	"strings"
	"testing"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/ai"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

func TestBuildRequest(t *testing.T) {
	c := group(
		msg("m1", "sam", "first", 50*time.Second),
		msg("m2", "aria", "second", 40*time.Second),
		msg("m3", "bolt", "third", 30*time.Second),
		msg("m4", "sam", "fourth", 20*time.Second),
	)
	c.Topic = "weekend plans"
	img := msg("m5", "cleo", "https://img/x.png", 10*time.Second)
	img.Type = model.TypeImage
	c.Messages["m5"] = img

	aria := people["aria"]
	aria.Personality = "sarcastic"
	req := BuildRequest(c, aria, people, 4)

	want := []ai.Turn{
		{Role: ai.RoleModel, Text: "second"},
		{Role: ai.RoleUser, Text: "Bolt: third"},
		{Role: ai.RoleUser, Text: "Sam: fourth"},
		{Role: ai.RoleUser, Text: "Cleo: [image]"},
	}
	if len(req.Turns) != len(want) {
		t.Fatalf("turns = %+v", req.Turns)
	}
	for i := range want {
		if req.Turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, req.Turns[i], want[i])
		}
	}

	for _, s := range []string{"You are Aria", "sarcastic", "weekend plans", "Bolt", "never say", "no markdown", "[IMAGE:"} {
		if !strings.Contains(strings.ToLower(req.System), strings.ToLower(s)) {
			t.Errorf("system instruction missing %q:\n%s", s, req.System)
		}
	}
}

func TestBuildRequestEndsWithUserTurn(t *testing.T) {
	c := group(msg("m1", "aria", "anyone?", time.Second))
	req := BuildRequest(c, people["aria"], people, 10)
	last := req.Turns[len(req.Turns)-1]
	if last.Role != ai.RoleUser {
		t.Errorf("last turn = %+v", last)
	}

	empty := BuildRequest(group(), people["bolt"], people, 10)
	if len(empty.Turns) != 1 || empty.Turns[0].Role != ai.RoleUser {
		t.Errorf("turns = %+v", empty.Turns)
	}
}
