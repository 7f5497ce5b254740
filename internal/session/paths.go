package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns $CHATALYST_HOME, or ~/.chatalyst when unset.
func BaseDir() string {
	if dir := os.Getenv("CHATALYST_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatalyst")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the local cache database path.
func CacheDBPath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatalystd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnvPath returns the global .env file holding API secrets.
func EnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
