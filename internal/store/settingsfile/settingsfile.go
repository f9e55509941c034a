// Package settingsfile implements the best-effort JSON settings round
// trip shared by the session store backends: the settings blob is a
// small local operator-preference file, not per-session conversational
// state, so every backend delegates to plain disk IO for it.
package settingsfile

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Load reads path as JSON, returning an empty map on any error
// (missing file, corrupt payload) per the Session Store's "best-effort,
// never throws" contract.
func Load(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]any{}, nil
	}
	return data, nil
}

// Save writes data as indented JSON to path, creating parent
// directories as needed. Errors are logged at debug level and
// swallowed; callers must tolerate missing data on the next Load.
func Save(log *slog.Logger, path string, data map[string]any) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Debug("settings_mkdir_failed", "path", path, "error", err)
		return
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Debug("settings_marshal_failed", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Debug("settings_write_failed", "path", path, "error", err)
	}
}
