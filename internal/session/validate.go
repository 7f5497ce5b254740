package session

import (
	"fmt"
	"regexp"
)

// Names are short so the socket path stays under the Unix socket limit.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: want 1-32 of [a-z0-9_-], starting with a letter or digit", name)
	}
	return nil
}
