package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv("CHATALYST_HOME", "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".chatalyst", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestBaseDirOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CHATALYST_HOME", tmp)
	if got := CacheDBPath("work"); got != filepath.Join(tmp, "sessions", "work", "cache.db") {
		t.Errorf("CacheDBPath(work) = %q", got)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "daemon.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix sessions/test/daemon.sock", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("CHATALYST_HOME", t.TempDir())
	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0700 {
			t.Errorf("%s: dir=%v perm=%o", d, info.IsDir(), info.Mode().Perm())
		}
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("CHATALYST_HOME", t.TempDir())
	t.Setenv(SessionEnv, "")
	if got := Resolve("work"); got != "work" {
		t.Errorf("Resolve(work) = %q", got)
	}
	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve() = %q, want %q", got, DefaultSessionName)
	}
	if err := os.WriteFile(ConfigPath(), []byte(`default_session = "home"`), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "home" {
		t.Errorf("Resolve() with config = %q, want home", got)
	}
	t.Setenv(SessionEnv, "ci")
	if got := Resolve(""); got != "ci" {
		t.Errorf("Resolve() with env = %q, want ci", got)
	}
	if got := Resolve("work"); got != "work" {
		t.Errorf("flag should beat env, got %q", got)
	}
}
