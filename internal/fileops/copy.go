package fileops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ResolveDestination turns a user-supplied destination into the final
// file path for a copy of src. When dst names a directory (it exists as
// one, ends with a separator, or carries no extension), the directory
// is created and src's basename is appended; a timestamped default name
// is synthesized if src has none. Otherwise the parent directory is
// created and dst is used as the file path.
func ResolveDestination(dstRaw, workingDirectory, srcName, defaultExt string) (string, error) {
	dst := Expand(dstRaw, workingDirectory)

	info, statErr := os.Stat(dst)
	isDir := statErr == nil && info.IsDir()
	looksLikeDir := strings.HasSuffix(dstRaw, "/") || filepath.Ext(dst) == ""

	if isDir || looksLikeDir {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return "", fmt.Errorf("creating destination directory: %w", err)
		}
		name := srcName
		if name == "" || name == "." || name == "/" {
			name = fmt.Sprintf("nlx_%d%s", time.Now().Unix(), defaultExt)
		}
		return filepath.Join(dst, name), nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating destination parent: %w", err)
	}
	return dst, nil
}

// CopyFile copies src to dst, overwriting an existing destination. The
// write goes through a temp file in dst's directory followed by a
// rename so a failed copy never leaves a truncated destination behind.
func CopyFile(src, dst string) error {
	if outside, err := ValidateWritePath(dst, true); err != nil {
		return err
	} else if outside {
		slog.Warn("copy_destination_outside_home", "dst", dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if info, err := os.Stat(src); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
