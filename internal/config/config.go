// Package config holds the engine's configuration: a JSON file with
// defaults, overlaid by environment variables. Secrets (Postgres DSN,
// search API keys) come from the environment only and are never written
// back to the file or logged.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for the engine.
type Config struct {
	Bus       BusConfig       `json:"bus"`
	Sessions  SessionsConfig  `json:"sessions"`
	Shell     ShellConfig     `json:"shell"`
	Search    SearchConfig    `json:"search"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	// SettingsPath locates the user-settings JSON blob.
	SettingsPath string `json:"settings_path,omitempty"`
}

// BusConfig configures the NATS connection.
type BusConfig struct {
	URL                  string `json:"url"`
	MaxReconnectAttempts int    `json:"max_reconnect_attempts"`
	ReconnectWaitSecs    int    `json:"reconnect_wait_seconds"`
	ConnectTimeoutSecs   int    `json:"connect_timeout_seconds"`
}

// SessionsConfig selects and configures the session store backend.
// PostgresDSN is never read from the config file — env NLX_POSTGRES_DSN
// only.
type SessionsConfig struct {
	Backend     string `json:"backend"` // "file" (default), "sqlite" or "postgres"
	Dir         string `json:"dir,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"`
	TTLHours    int    `json:"ttl_hours"`
	MaxArchives int    `json:"max_archives"`
}

// ShellConfig bounds command_execute.
type ShellConfig struct {
	TimeoutSecs int `json:"timeout_seconds"`
}

// SearchConfig configures the in-process web search adapter.
// BraveAPIKey is env-only (NLX_BRAVE_API_KEY).
type SearchConfig struct {
	BraveAPIKey string `json:"-"`
	DDGEnabled  bool   `json:"ddg_enabled"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // "json" or "text"
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
	Protocol     string `json:"protocol,omitempty"` // "grpc" (default) or "http"
}

// DataDir returns the session store's root directory.
func (c *Config) DataDir() string {
	if c.Sessions.Dir != "" {
		return c.Sessions.Dir
	}
	return filepath.Join(userDataHome(), "convod")
}

// TTL returns the configured session TTL as a duration.
func (c *Config) TTL() time.Duration {
	hours := c.Sessions.TTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// ShellTimeout returns the configured command_execute deadline.
func (c *Config) ShellTimeout() time.Duration {
	secs := c.Shell.TimeoutSecs
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func userDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func userConfigHome() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

// Default returns a Config with working defaults: local NATS, file
// session backend under the XDG data directory, DuckDuckGo search.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			URL:                  "nats://127.0.0.1:4222",
			MaxReconnectAttempts: 10,
			ReconnectWaitSecs:    2,
			ConnectTimeoutSecs:   5,
		},
		Sessions: SessionsConfig{
			Backend:     "file",
			TTLHours:    24,
			MaxArchives: 50,
		},
		Shell: ShellConfig{
			TimeoutSecs: 30,
		},
		Search: SearchConfig{
			DDGEnabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		SettingsPath: filepath.Join(userConfigHome(), "convod", "settings.json"),
	}
}
