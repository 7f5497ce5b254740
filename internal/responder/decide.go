package responder

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

// Reason records which branch of the policy produced a decision.
type Reason string

const (
	ReasonDormant   Reason = "dormant"
	ReasonNoAI      Reason = "no_ai"
	ReasonMentioned Reason = "mentioned"
	ReasonHuman     Reason = "human_spoke"
	ReasonChance    Reason = "chance"
	ReasonSilent    Reason = "silent"
)

// Decision is the outcome of one policy evaluation for a conversation.
type Decision struct {
	Speak     bool
	Speaker   string
	Mentioned string
	Reason    Reason
}

// Policy holds the tunables of the speak decision.
type Policy struct {
	Inactivity       time.Duration
	SpeakProbability float64
}

// NewRand returns the generator Decide draws from; equal seeds give equal
// sequences.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
}

// Decide evaluates one group conversation at now. It is deterministic for a
// given rng state.
//
// A conversation with no messages, or whose latest message is older than
// Inactivity, is dormant. Otherwise an AI speaks when it was named in the
// latest human message and did not send the last message, when the last
// message came from a human, or when a draw succeeds at SpeakProbability.
func (p Policy) Decide(conv *model.Conversation, users map[string]model.User, now time.Time, rng *rand.Rand) Decision {
	last, ok := conv.LastMessage()
	if !ok || now.Sub(time.UnixMilli(last.Timestamp)) > p.Inactivity {
		return Decision{Reason: ReasonDormant}
	}

	ais := aiParticipants(conv, users)
	if len(ais) == 0 {
		return Decision{Reason: ReasonNoAI}
	}

	d := Decision{Mentioned: mentionedAI(conv, users, ais)}
	lastIsAI := users[last.SenderID].IsAI
	mentionWins := d.Mentioned != "" && d.Mentioned != last.SenderID

	switch {
	case mentionWins:
		d.Reason = ReasonMentioned
	case !lastIsAI:
		d.Reason = ReasonHuman
	case rng.Float64() < p.SpeakProbability:
		d.Reason = ReasonChance
	default:
		d.Reason = ReasonSilent
		return d
	}
	d.Speak = true

	if mentionWins {
		d.Speaker = d.Mentioned
		return d
	}
	candidates := ais
	if lastIsAI {
		var rest []string
		for _, uid := range ais {
			if uid != last.SenderID {
				rest = append(rest, uid)
			}
		}
		if len(rest) > 0 {
			candidates = rest
		}
	}
	d.Speaker = candidates[rng.IntN(len(candidates))]
	return d
}

// aiParticipants returns the AI members in sorted order.
func aiParticipants(conv *model.Conversation, users map[string]model.User) []string {
	var ais []string
	for _, uid := range conv.ParticipantIDs() {
		if users[uid].IsAI {
			ais = append(ais, uid)
		}
	}
	return ais
}

// mentionedAI returns the first AI, in sorted uid order, whose display name
// appears in the latest human-authored message.
func mentionedAI(conv *model.Conversation, users map[string]model.User, ais []string) string {
	msgs := conv.SortedMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if users[m.SenderID].IsAI {
			continue
		}
		text := strings.ToLower(m.Content)
		for _, uid := range ais {
			name := strings.ToLower(strings.TrimSpace(users[uid].Name))
			if name != "" && strings.Contains(text, name) {
				return uid
			}
		}
		return ""
	}
	return ""
}
