package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Responder.PollInterval = Duration{5 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Responder.PollInterval.Duration != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", loaded.Responder.PollInterval)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "principal = \"u1\"\n\n[responder]\ninactivity = \"90s\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Principal != "u1" {
		t.Errorf("Principal = %q", cfg.Principal)
	}
	if cfg.Responder.Inactivity.Duration != 90*time.Second {
		t.Errorf("Inactivity = %v, want 90s", cfg.Responder.Inactivity)
	}
	if cfg.Responder.PollInterval.Duration != 20*time.Second {
		t.Errorf("PollInterval = %v, want default 20s", cfg.Responder.PollInterval)
	}
	if cfg.Responder.SpeakProbability != 0.5 {
		t.Errorf("SpeakProbability = %v, want 0.5", cfg.Responder.SpeakProbability)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Remote.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Remote.Backend)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestDotEnvAndApplyEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CHATALYST_AI_API_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATALYST_AI_API_KEY", "")
	_ = os.Unsetenv("CHATALYST_AI_API_KEY")
	t.Setenv("CHATALYST_PIXABAY_KEY", "px")

	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	cfg := Default()
	ApplyEnv(cfg)
	if cfg.AI.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.Images.PixabayKey != "px" {
		t.Errorf("PixabayKey = %q", cfg.Images.PixabayKey)
	}
}
