// Package config loads the client configuration from a YAML file,
// creating a commented default file on first run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/honeycal/internal/session"
)

// Config is the client-side application configuration.
type Config struct {
	// DatabasePath is the device-local SQLite cache.
	DatabasePath string `yaml:"database_path"`

	// ServerURL is the remote event service base URL, including the
	// /api prefix (e.g. "https://cal.example.com/api").
	ServerURL string `yaml:"server_url"`

	// WebsocketURL is the realtime endpoint
	// (e.g. "wss://cal.example.com/ws").
	WebsocketURL string `yaml:"websocket_url"`

	// Token is the session credential issued by the authentication
	// service.
	Token string `yaml:"token"`

	// UserID and PartnerID identify the caller and the paired partner.
	// PartnerID 0 means unpaired.
	UserID    int64 `yaml:"user_id"`
	PartnerID int64 `yaml:"partner_id"`

	// SyncCron schedules the periodic reconciliation in the run daemon.
	SyncCron string `yaml:"sync_cron"`

	// RemoteTimeout bounds each remote call.
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
}

// Default returns the built-in configuration, rooted under the user's
// config directory.
func Default() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	base := filepath.Join(dir, "honeycal")
	return Config{
		DatabasePath:  filepath.Join(base, "honeycal.db"),
		ServerURL:     "http://localhost:3001/api",
		WebsocketURL:  "ws://localhost:3001/ws",
		SyncCron:      "*/5 * * * *",
		RemoteTimeout: 5 * time.Second,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "honeycal", "config.yaml")
}

// Load reads the config at path. If the file does not exist, a default
// config is written there (0600, it holds a credential) and returned.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Session returns the session source the config describes.
func (c Config) Session() session.Static {
	return session.Static{
		Caller: session.Caller{UserID: c.UserID, PartnerID: c.PartnerID},
		Token:  session.Credential(c.Token),
	}
}
