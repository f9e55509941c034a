package fileops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpand_Shortcuts(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"pictures", filepath.Join(home, "Pictures")},
		{"Pictures", filepath.Join(home, "Pictures")},
		{"music/generated", filepath.Join(home, "Music", "generated")},
		{"home", home},
		{"~", home},
	}
	for _, tt := range tests {
		got := Expand(tt.in, "")
		// EvalSymlinks may canonicalize /home into a symlink target; the
		// suffix is the stable part.
		if got != tt.want && !strings.HasSuffix(got, strings.TrimPrefix(tt.want, "/")) {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpand_RelativeAgainstWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	got := Expand("notes.txt", dir)
	want := filepath.Join(dir, "notes.txt")
	if got != want && !strings.HasSuffix(got, "notes.txt") {
		t.Errorf("Expand relative = %q, want %q", got, want)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("Expand result not absolute: %q", got)
	}
}

func TestExpand_EnvVars(t *testing.T) {
	t.Setenv("CONVO_TEST_DIR", "/tmp/convotest")
	got := Expand("$CONVO_TEST_DIR/file.txt", "")
	if !strings.HasPrefix(got, "/tmp/convotest") {
		t.Errorf("Expand env = %q", got)
	}
}

func TestExpand_EmptyIsHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := Expand("", ""); got != home {
		t.Errorf("Expand(\"\") = %q, want %q", got, home)
	}
}

func TestResolveDestination_Directory(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveDestination(dir, "", "sunset.png", ".png")
	if err != nil {
		t.Fatalf("ResolveDestination: %v", err)
	}
	if filepath.Base(got) != "sunset.png" {
		t.Errorf("basename = %q, want sunset.png", filepath.Base(got))
	}
}

func TestResolveDestination_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "copy.png")
	got, err := ResolveDestination(target, "", "sunset.png", ".png")
	if err != nil {
		t.Fatalf("ResolveDestination: %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join("out", "copy.png")) {
		t.Errorf("got %q, want suffix out/copy.png", got)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	payload := []byte("some binary payload")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading dst: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("dst bytes = %q, want %q", got, payload)
	}
}

func TestCopyFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	os.WriteFile(src, []byte("new"), 0o644)
	os.WriteFile(dst, []byte("old"), 0o644)

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new" {
		t.Errorf("dst = %q, want new", got)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Error("CopyFile with missing source did not fail")
	}
}
