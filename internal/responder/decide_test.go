package responder

import (
	"testing"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

var (
	t0     = time.UnixMilli(1_700_000_000_000)
	policy = Policy{Inactivity: 150 * time.Second, SpeakProbability: 0.5}
	people = map[string]model.User{
		"sam":  {UID: "sam", Name: "Sam"},
		"aria": {UID: "aria", Name: "Aria", IsAI: true},
		"bolt": {UID: "bolt", Name: "Bolt", IsAI: true},
		"cleo": {UID: "cleo", Name: "Cleo", IsAI: true},
	}
)

func group(msgs ...model.Message) *model.Conversation {
	c := &model.Conversation{
		ID:           "g1",
		Name:         "Crew",
		Group:        true,
		Participants: map[string]bool{"sam": true, "aria": true, "bolt": true, "cleo": true},
		Messages:     map[string]model.Message{},
	}
	for _, m := range msgs {
		c.Messages[m.ID] = m
	}
	return c
}

func msg(id, sender, content string, age time.Duration) model.Message {
	return model.Message{ID: id, SenderID: sender, Content: content, Type: model.TypeText, Timestamp: t0.Add(-age).UnixMilli()}
}

func TestDecideDormant(t *testing.T) {
	cases := map[string]*model.Conversation{
		"empty":   group(),
		"stale":   group(msg("m1", "sam", "anyone?", 151*time.Second)),
		"mention": group(msg("m1", "sam", "Aria you there?", 10*time.Minute)),
	}
	for name, c := range cases {
		for seed := int64(1); seed <= 20; seed++ {
			d := policy.Decide(c, people, t0, NewRand(seed))
			if d.Speak || d.Reason != ReasonDormant {
				t.Errorf("%s seed %d: %+v, want dormant", name, seed, d)
			}
		}
	}
}

func TestDecideNoAI(t *testing.T) {
	c := group(msg("m1", "sam", "hello", time.Second))
	c.Participants = map[string]bool{"sam": true, "kim": true}
	if d := policy.Decide(c, people, t0, NewRand(1)); d.Speak || d.Reason != ReasonNoAI {
		t.Errorf("decision = %+v", d)
	}
}

func TestDecideMentionOverride(t *testing.T) {
	c := group(
		msg("m1", "aria", "hi all", 20*time.Second),
		msg("m2", "sam", "what do you think, BOLT?", 5*time.Second),
	)
	for seed := int64(1); seed <= 200; seed++ {
		d := policy.Decide(c, people, t0, NewRand(seed))
		if !d.Speak || d.Speaker != "bolt" || d.Reason != ReasonMentioned {
			t.Fatalf("seed %d: %+v, want bolt by mention", seed, d)
		}
	}
}

func TestDecideMentionedAIWasLastSpeaker(t *testing.T) {
	c := group(
		msg("m1", "sam", "cleo tell a joke", 20*time.Second),
		msg("m2", "cleo", "why did the chicken...", 5*time.Second),
	)
	for seed := int64(1); seed <= 200; seed++ {
		d := policy.Decide(c, people, t0, NewRand(seed))
		if d.Reason == ReasonMentioned {
			t.Fatalf("seed %d: mention should not force the last speaker", seed)
		}
		if d.Speak && d.Speaker == "cleo" {
			t.Fatalf("seed %d: cleo spoke twice in a row", seed)
		}
	}
}

func TestDecideHumanSpokeAlwaysAnswers(t *testing.T) {
	c := group(msg("m1", "sam", "morning", time.Second))
	seen := map[string]bool{}
	for seed := int64(1); seed <= 200; seed++ {
		d := policy.Decide(c, people, t0, NewRand(seed))
		if !d.Speak || d.Reason != ReasonHuman {
			t.Fatalf("seed %d: %+v", seed, d)
		}
		seen[d.Speaker] = true
	}
	for _, ai := range []string{"aria", "bolt", "cleo"} {
		if !seen[ai] {
			t.Errorf("%s never picked across 200 seeds", ai)
		}
	}
}

func TestDecideChance(t *testing.T) {
	c := group(msg("m1", "aria", "so quiet", time.Second))

	never := Policy{Inactivity: policy.Inactivity, SpeakProbability: 0}
	always := Policy{Inactivity: policy.Inactivity, SpeakProbability: 1}
	for seed := int64(1); seed <= 50; seed++ {
		if d := never.Decide(c, people, t0, NewRand(seed)); d.Speak || d.Reason != ReasonSilent {
			t.Fatalf("p=0 seed %d: %+v", seed, d)
		}
		d := always.Decide(c, people, t0, NewRand(seed))
		if !d.Speak || d.Reason != ReasonChance {
			t.Fatalf("p=1 seed %d: %+v", seed, d)
		}
		if d.Speaker == "aria" {
			t.Fatalf("seed %d: previous AI speaker picked again", seed)
		}
	}
}

func TestDecideSoleAIMaySpeakAgain(t *testing.T) {
	c := group(msg("m1", "aria", "hello?", time.Second))
	c.Participants = map[string]bool{"sam": true, "aria": true}
	d := Policy{Inactivity: policy.Inactivity, SpeakProbability: 1}.Decide(c, people, t0, NewRand(3))
	if !d.Speak || d.Speaker != "aria" {
		t.Errorf("decision = %+v, want aria", d)
	}
}

func TestDecideDeterministicForSeed(t *testing.T) {
	c := group(msg("m1", "bolt", "hm", time.Second))
	for seed := int64(1); seed <= 20; seed++ {
		a := policy.Decide(c, people, t0, NewRand(seed))
		b := policy.Decide(c, people, t0, NewRand(seed))
		if a != b {
			t.Fatalf("seed %d: %+v != %+v", seed, a, b)
		}
	}
}
