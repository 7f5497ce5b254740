package session

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "main", false},
		{"principal-like", "alice_2", false},
		{"hyphen", "my-session", false},
		{"single char", "a", false},
		{"max length", strings.Repeat("a", 32), false},
		{"empty", "", true},
		{"leading hyphen", "-main", true},
		{"leading underscore", "_main", true},
		{"uppercase", "Main", true},
		{"space", "my session", true},
		{"dot", "my.session", true},
		{"too long", strings.Repeat("a", 33), true},
		{"slash", "my/session", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
