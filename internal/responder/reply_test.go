package responder

import "testing"

func TestParseReply(t *testing.T) {
	tests := []struct {
		raw  string
		want Reply
	}{
		{"hey **you**  ", Reply{Kind: TextOnly, Text: "hey you"}},
		{"look at this [IMAGE: red panda]", Reply{Kind: TextThenImage, Text: "look at this", Query: "red panda"}},
		{"[IMAGE:sunset over lisbon]", Reply{Kind: ImageOnly, Query: "sunset over lisbon"}},
		{"...[IMAGE: cat]", Reply{Kind: ImageOnly, Query: "cat"}},
		{"one [IMAGE: first] two [IMAGE: second]", Reply{Kind: TextThenImage, Text: "one  two", Query: "first"}},
		{"nothing here [IMAGE: ]", Reply{Kind: TextOnly, Text: "nothing here"}},
		{"...", Reply{Kind: TextOnly, Text: "..."}},
	}
	for _, tt := range tests {
		if got := ParseReply(tt.raw); got != tt.want {
			t.Errorf("ParseReply(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestSendable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello", true},
		{"", false},
		{"   ", false},
		{"...", false},
		{"... ok", true},
		{Placeholder, false},
		{Placeholder + " Try later.", false},
	}
	for _, tt := range tests {
		if got := Sendable(tt.text); got != tt.want {
			t.Errorf("Sendable(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
