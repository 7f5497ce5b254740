package lock

import (
	"errors"
	"testing"
)

func TestAcquireRecordsHolder(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "u1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer func() { _ = l.Release() }()

	info, err := Read(tmpDir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if info.PID == 0 || info.Principal != "u1" || info.Since.IsZero() {
		t.Errorf("info = %+v", info)
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	tmpDir := t.TempDir()

	l1, err := Acquire(tmpDir, "u1")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(tmpDir, "u2")
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var lockErr *LockHeldError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockHeldError, got %T: %v", err, err)
	}
	if lockErr.Info.Principal != "u1" {
		t.Errorf("holder principal = %q, want u1", lockErr.Info.Principal)
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if _, err := Read(tmpDir); err == nil {
		t.Error("lock file should be removed on release")
	}
}
