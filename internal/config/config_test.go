package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.URL != "nats://127.0.0.1:4222" {
		t.Errorf("bus url = %q", cfg.Bus.URL)
	}
	if cfg.Sessions.Backend != "file" {
		t.Errorf("backend = %q", cfg.Sessions.Backend)
	}
	if cfg.TTL() != 24*time.Hour {
		t.Errorf("ttl = %v", cfg.TTL())
	}
	if cfg.ShellTimeout() != 30*time.Second {
		t.Errorf("shell timeout = %v", cfg.ShellTimeout())
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := `{"bus": {"url": "nats://filehost:4222"}, "shell": {"timeout_seconds": 10}}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NLX_NATS_URL", "nats://envhost:4222")
	t.Setenv("NLX_POSTGRES_DSN", "postgres://secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.URL != "nats://envhost:4222" {
		t.Errorf("env did not win: %q", cfg.Bus.URL)
	}
	if cfg.ShellTimeout() != 10*time.Second {
		t.Errorf("file value lost: %v", cfg.ShellTimeout())
	}
	if cfg.Sessions.PostgresDSN != "postgres://secret" {
		t.Errorf("dsn not read from env")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{broken"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("malformed config must error")
	}
}
