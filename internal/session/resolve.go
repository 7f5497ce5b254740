package session

import (
	"os"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/config"
)

const DefaultSessionName = "main"

// SessionEnv names the variable that selects a session when no flag is given.
const SessionEnv = "CHATALYST_SESSION"

// Resolve picks the session name. The --session flag wins, then
// CHATALYST_SESSION, then default_session from config.toml, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if name := os.Getenv(SessionEnv); name != "" {
		return name
	}
	if cfg, err := config.LoadOrDefault(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
