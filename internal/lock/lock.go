// Package lock guarantees one daemon, and so one cache writer, per session.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockHeldError is returned when another process holds the session lock.
type LockHeldError struct {
	Info Info
	Path string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("session lock held by PID %d as %q (%s)", e.Info.PID, e.Info.Principal, e.Path)
}

// Info is what the holder records in the lock file.
type Info struct {
	PID       int
	Principal string
	Since     time.Time
}

// Lock represents an acquired session lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock on the session directory and records
// the holder. Returns LockHeldError if another process already holds it.
func Acquire(sessionDir, principal string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, "LOCK")

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		info, _ := Read(sessionDir)
		_ = f.Close()
		return nil, &LockHeldError{Info: info, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nprincipal=%s\ntime=%s\n",
		os.Getpid(), principal, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Read parses the lock file of a session without taking the lock.
func Read(sessionDir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, "LOCK"))
	if err != nil {
		return Info{}, err
	}
	var info Info
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(val)
		case "principal":
			info.Principal = val
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, val)
		}
	}
	return info, nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}
