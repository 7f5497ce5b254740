package responder

import (
	"fmt"
	"strings"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/ai"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

const nudge = "(The chat has gone quiet. Say something that fits the conversation.)"

// SystemInstruction renders a persona into the generator's system prompt.
func SystemInstruction(speaker model.User, conv *model.Conversation, users map[string]model.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, chatting with friends in a messaging app.\n", displayName(speaker))
	field(&b, "Personality", speaker.Personality)
	field(&b, "Background", speaker.BackgroundStory)
	field(&b, "Interests", speaker.Interests)
	field(&b, "Speaking style", speaker.SpeakingStyle)

	if conv != nil {
		if conv.Group {
			fmt.Fprintf(&b, "This is the group chat %q.\n", conv.Name)
			field(&b, "Topic", conv.Topic)
			var names []string
			for _, uid := range conv.ParticipantIDs() {
				if uid != speaker.UID {
					names = append(names, displayName(users[uid]))
				}
			}
			if len(names) > 0 {
				fmt.Fprintf(&b, "Other members: %s.\n", strings.Join(names, ", "))
			}
		} else {
			b.WriteString("This is a private one-to-one chat.\n")
		}
	}

	b.WriteString("Stay in character. Never say or hint that you are an AI, a bot or a language model.\n")
	b.WriteString("Write plain chat text only: no markdown, no asterisks, no name prefix.\n")
	b.WriteString("Keep it short, like a real text message. If you have nothing to add, reply with exactly ...\n")
	b.WriteString("You may share at most one picture by writing [IMAGE: short search query] on its own.")
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fmt.Fprintf(b, "%s: %s\n", label, v)
	}
}

func displayName(u model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.UID
}

// BuildRequest assembles the generation input for speaker: the system
// instruction plus the last historyLimit messages, oldest first. The
// speaker's own messages become model turns; everyone else's are prefixed
// with the sender's name. The last turn is always a user turn.
func BuildRequest(conv *model.Conversation, speaker model.User, users map[string]model.User, historyLimit int) ai.Request {
	msgs := conv.SortedMessages()
	if historyLimit > 0 && len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	turns := make([]ai.Turn, 0, len(msgs)+1)
	for _, m := range msgs {
		text := model.Preview(m, 0)
		if m.SenderID == speaker.UID {
			turns = append(turns, ai.Turn{Role: ai.RoleModel, Text: text})
			continue
		}
		sender := users[m.SenderID]
		if sender.UID == "" {
			sender.UID = m.SenderID
		}
		turns = append(turns, ai.Turn{Role: ai.RoleUser, Text: displayName(sender) + ": " + text})
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != ai.RoleUser {
		turns = append(turns, ai.Turn{Role: ai.RoleUser, Text: nudge})
	}

	return ai.Request{
		System: SystemInstruction(speaker, conv, users),
		Turns:  turns,
	}
}
