package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Load reads config from a JSON file, then overlays env vars. A missing
// file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("NLX_NATS_URL", &c.Bus.URL)
	envInt("NLX_NATS_MAX_RECONNECT_ATTEMPTS", &c.Bus.MaxReconnectAttempts)
	envStr("NLX_SESSIONS_BACKEND", &c.Sessions.Backend)
	envStr("NLX_SESSIONS_DIR", &c.Sessions.Dir)
	envStr("NLX_SQLITE_PATH", &c.Sessions.SQLitePath)
	envStr("NLX_POSTGRES_DSN", &c.Sessions.PostgresDSN)
	envInt("NLX_SESSION_TTL_HOURS", &c.Sessions.TTLHours)
	envInt("NLX_SHELL_TIMEOUT_SECONDS", &c.Shell.TimeoutSecs)
	envStr("NLX_BRAVE_API_KEY", &c.Search.BraveAPIKey)
	envStr("NLX_LOG_LEVEL", &c.Log.Level)
	envStr("NLX_LOG_FORMAT", &c.Log.Format)
	envStr("NLX_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	envStr("NLX_SETTINGS_PATH", &c.SettingsPath)
}
