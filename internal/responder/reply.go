package responder

import (
	"regexp"
	"strings"
)

// Placeholder is the text a failed generation is mapped to. Replies starting
// with it are never sent.
const Placeholder = "Sorry, I'm having trouble responding right now."

// ellipsis is what the model answers when it has nothing to add.
const ellipsis = "..."

// Kind tags a parsed reply.
type Kind int

const (
	TextOnly Kind = iota
	TextThenImage
	ImageOnly
)

func (k Kind) String() string {
	switch k {
	case TextThenImage:
		return "text_then_image"
	case ImageOnly:
		return "image_only"
	default:
		return "text_only"
	}
}

// Reply is a generated response split into its text and image parts.
type Reply struct {
	Kind  Kind
	Text  string
	Query string
}

var imageDirective = regexp.MustCompile(`\[IMAGE:\s*([^\]]*?)\s*\]`)

// ParseReply extracts the first [IMAGE: query] directive from raw. Further
// directives are dropped from the text and ignored.
func ParseReply(raw string) Reply {
	m := imageDirective.FindStringSubmatch(raw)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return Reply{Kind: TextOnly, Text: clean(imageDirective.ReplaceAllString(raw, ""))}
	}
	text := clean(imageDirective.ReplaceAllString(raw, ""))
	r := Reply{Kind: TextThenImage, Text: text, Query: strings.TrimSpace(m[1])}
	if !Sendable(text) {
		r.Kind = ImageOnly
		r.Text = ""
	}
	return r
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

// Sendable reports whether cleaned text should become a message.
func Sendable(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && text != ellipsis && !strings.HasPrefix(text, Placeholder)
}
