// Package fileops holds path expansion and the file-copy primitives
// used by the save actions. Paths typed by a user are forgiving:
// folder shortcuts ("pictures"), ~, env vars, and relative segments all
// resolve against the session's working directory.
package fileops

import (
	"os"
	"path/filepath"
	"strings"
)

// shortcuts maps case-insensitive folder names to their home-relative
// targets.
var shortcuts = map[string]string{
	"desktop":   "~/Desktop",
	"documents": "~/Documents",
	"downloads": "~/Downloads",
	"pictures":  "~/Pictures",
	"music":     "~/Music",
	"videos":    "~/Videos",
	"home":      "~",
}

// Expand resolves path to an absolute, canonicalized filesystem path:
// shortcut substitution first, then ~ and env-var expansion, then
// relative resolution against workingDirectory, then symlink
// canonicalization. An empty path resolves to the user's home.
func Expand(path, workingDirectory string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	if path == "" {
		return home
	}

	lower := strings.ToLower(path)
	for shortcut, target := range shortcuts {
		if lower == shortcut || strings.HasPrefix(lower, shortcut+"/") {
			path = target + path[len(shortcut):]
			break
		}
	}

	if path == "~" {
		path = home
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(home, path[2:])
	}
	path = os.ExpandEnv(path)

	if !filepath.IsAbs(path) {
		base := workingDirectory
		if base == "" {
			base, err = os.Getwd()
			if err != nil {
				base = home
			}
		}
		path = filepath.Join(base, path)
	}

	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	} else {
		path = filepath.Clean(path)
	}
	return path
}

// ValidateWritePath checks that the parent of path exists (or creates
// it when createParents is true); it does not check that the parent is
// writable. Paths outside
// the home directory are allowed but logged by callers; the boundary
// check here only reports it.
func ValidateWritePath(path string, createParents bool) (outsideHome bool, err error) {
	home, herr := os.UserHomeDir()
	if herr == nil {
		if rel, rerr := filepath.Rel(home, path); rerr != nil || strings.HasPrefix(rel, "..") {
			outsideHome = true
		}
	}

	parent := filepath.Dir(path)
	if _, serr := os.Stat(parent); serr != nil {
		if !createParents {
			return outsideHome, serr
		}
		if merr := os.MkdirAll(parent, 0o755); merr != nil {
			return outsideHome, merr
		}
	}
	return outsideHome, nil
}
