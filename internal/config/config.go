package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.chatalyst/config.toml.
type Config struct {
	DefaultSession string          `toml:"default_session"`
	Principal      string          `toml:"principal"`
	Remote         RemoteConfig    `toml:"remote"`
	AI             AIConfig        `toml:"ai"`
	Images         ImagesConfig    `toml:"images"`
	Responder      ResponderConfig `toml:"responder"`
	Notify         NotifyConfig    `toml:"notify"`
	Ops            OpsConfig       `toml:"ops"`
}

// RemoteConfig selects the remote tree backend.
type RemoteConfig struct {
	Backend  string `toml:"backend"` // "memory" or "redis"
	RedisURL string `toml:"redis_url"`
	Prefix   string `toml:"prefix"`
}

// AIConfig points the generator at an OpenAI-compatible endpoint.
type AIConfig struct {
	BaseURL       string  `toml:"base_url"`
	APIKey        string  `toml:"api_key"`
	Model         string  `toml:"model"`
	RatePerMinute float64 `toml:"rate_per_minute"`
}

// ImagesConfig holds image search credentials.
type ImagesConfig struct {
	GoogleAPIKey  string  `toml:"google_api_key"`
	GoogleCX      string  `toml:"google_cx"`
	PixabayKey    string  `toml:"pixabay_key"`
	RatePerMinute float64 `toml:"rate_per_minute"`
}

// ResponderConfig tunes the autonomous group responder.
type ResponderConfig struct {
	Enabled          bool     `toml:"enabled"`
	PollInterval     Duration `toml:"poll_interval"`
	Inactivity       Duration `toml:"inactivity"`
	SpeakProbability float64  `toml:"speak_probability"`
	HistoryLimit     int      `toml:"history_limit"`
	DirectReplies    bool     `toml:"direct_replies"`
	Seed             int64    `toml:"seed"`
}

// NotifyConfig configures push fan-out. An empty URL disables it.
type NotifyConfig struct {
	AMQPURL string `toml:"amqp_url"`
	Queue   string `toml:"queue"`
}

// OpsConfig configures the health/metrics listener. An empty address disables it.
type OpsConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as "20s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{Backend: "memory", Prefix: "chatalyst:"},
		AI: AIConfig{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:         "gemini-2.0-flash",
			RatePerMinute: 30,
		},
		Images: ImagesConfig{RatePerMinute: 20},
		Responder: ResponderConfig{
			Enabled:          true,
			PollInterval:     Duration{20 * time.Second},
			Inactivity:       Duration{150 * time.Second},
			SpeakProbability: 0.5,
			HistoryLimit:     30,
			DirectReplies:    true,
		},
		Notify: NotifyConfig{Queue: "chatalyst.push"},
	}
}

// Load reads config from the given path on top of the defaults. Returns
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to the defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadDotEnv loads KEY=VALUE pairs from an .env file into the process
// environment. A missing file is not an error; existing variables win.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides secrets and endpoints from CHATALYST_* variables.
func ApplyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("CHATALYST_PRINCIPAL", &cfg.Principal)
	str("CHATALYST_REMOTE_BACKEND", &cfg.Remote.Backend)
	str("CHATALYST_REDIS_URL", &cfg.Remote.RedisURL)
	str("CHATALYST_AI_BASE_URL", &cfg.AI.BaseURL)
	str("CHATALYST_AI_API_KEY", &cfg.AI.APIKey)
	str("CHATALYST_AI_MODEL", &cfg.AI.Model)
	str("CHATALYST_GOOGLE_API_KEY", &cfg.Images.GoogleAPIKey)
	str("CHATALYST_GOOGLE_CX", &cfg.Images.GoogleCX)
	str("CHATALYST_PIXABAY_KEY", &cfg.Images.PixabayKey)
	str("CHATALYST_AMQP_URL", &cfg.Notify.AMQPURL)
	str("CHATALYST_OPS_ADDR", &cfg.Ops.Addr)
	if v, ok := os.LookupEnv("CHATALYST_RESPONDER_SEED"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Responder.Seed = n
		}
	}
}
