package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neuralux/convoengine/internal/convo"
)

func TestCommandExecute_Success(t *testing.T) {
	fb := newFakeBus()
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "echo hello"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if got, _ := result.Details["stdout"].(string); strings.TrimSpace(got) != "hello" {
		t.Errorf("stdout = %q", got)
	}
	if got := result.Details["returncode"]; got != 0 {
		t.Errorf("returncode = %v", got)
	}
	if got := s.GetVariable(convo.VarLastCommand, ""); got != "echo hello" {
		t.Errorf("last_command = %v", got)
	}
	if pubs := fb.publishedTo("temporal.command.new"); len(pubs) != 1 {
		t.Errorf("command event publishes = %d, want 1", len(pubs))
	}
}

func TestCommandExecute_NonZeroExit(t *testing.T) {
	fb := newFakeBus()
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "sh -c 'exit 3'"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if result.Success {
		t.Fatal("nonzero exit must fail")
	}
	if result.ErrorKind != convo.ErrExecutionFailure {
		t.Errorf("error kind = %s", result.ErrorKind)
	}
	if got := result.Details["returncode"]; got != 3 {
		t.Errorf("returncode = %v", got)
	}
	// Exit code is defined, so the observability event still goes out.
	if pubs := fb.publishedTo("temporal.command.new"); len(pubs) != 1 {
		t.Errorf("command event publishes = %d, want 1", len(pubs))
	}
}

func TestCommandExecute_Timeout(t *testing.T) {
	fb := newFakeBus()
	o := newTestOrchestrator(fb)
	o.ShellTimeout = 200 * time.Millisecond
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "sleep 5"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if result.Success {
		t.Fatal("timed-out command must fail")
	}
	if result.ErrorKind != convo.ErrExecutionFailure {
		t.Errorf("error kind = %s", result.ErrorKind)
	}
	// No exit code, no event.
	if pubs := fb.publishedTo("temporal.command.new"); len(pubs) != 0 {
		t.Errorf("command event publishes = %d, want 0", len(pubs))
	}
}

func TestCommandExecute_Stdin(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	target := filepath.Join(s.WorkingDirectory, "out.txt")

	action := &convo.Action{
		Kind:   convo.ActionCommandExecute,
		Params: map[string]any{"command": "cat > " + target, "stdin": "piped content"},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if string(data) != "piped content" {
		t.Errorf("file contents = %q", data)
	}
}

func TestCommandExecute_DeniedBySafetyPolicy(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "dd if=/dev/zero of=/dev/sda"}}

	result := o.ExecuteAction(context.Background(), action, testSession(t))
	if result.Success {
		t.Fatal("destructive command must be denied")
	}
	if result.ErrorKind != convo.ErrInvalidParam {
		t.Errorf("error kind = %s", result.ErrorKind)
	}
}

// --- context mutation rules ---

func TestContextMutation_Cd(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	sub := filepath.Join(s.WorkingDirectory, "sub")
	os.MkdirAll(sub, 0o755)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "cd sub"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if !strings.HasSuffix(s.WorkingDirectory, "sub") {
		t.Errorf("working_directory = %q", s.WorkingDirectory)
	}
}

func TestContextMutation_MkdirAdoptsDirectory(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "mkdir -p projects/alpha"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if !strings.HasSuffix(s.WorkingDirectory, filepath.Join("projects", "alpha")) {
		t.Errorf("working_directory = %q, want .../projects/alpha", s.WorkingDirectory)
	}
	if got, _ := s.GetVariable(convo.VarLastCreatedDir, "").(string); !strings.HasSuffix(got, "alpha") {
		t.Errorf("last_created_dir = %q", got)
	}
	dirs := s.GetVariable(convo.VarCreatedDirs, nil)
	if list, ok := dirs.([]string); !ok || len(list) != 1 {
		t.Errorf("created_dirs = %#v", dirs)
	}
}

func TestContextMutation_Touch(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "touch todo.txt"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	got, _ := s.GetVariable(convo.VarLastCreatedFile, "").(string)
	if !strings.HasSuffix(got, "todo.txt") {
		t.Errorf("last_created_file = %q", got)
	}
	files, _ := s.GetVariable(convo.VarCreatedFiles, nil).([]string)
	if len(files) != 1 || !strings.HasSuffix(files[0], "todo.txt") {
		t.Errorf("created_files = %v", files)
	}
}

func TestContextMutation_Redirection(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "echo hi > notes.txt"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	got, _ := s.GetVariable(convo.VarLastCreatedFile, "").(string)
	if !strings.HasSuffix(got, "notes.txt") {
		t.Errorf("last_created_file = %q", got)
	}
}

func TestContextMutation_CpDestination(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	src := filepath.Join(s.WorkingDirectory, "a.txt")
	os.WriteFile(src, []byte("x"), 0o644)

	action := &convo.Action{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "cp a.txt b.txt"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	got, _ := s.GetVariable(convo.VarLastCreatedFile, "").(string)
	if !strings.HasSuffix(got, "b.txt") {
		t.Errorf("last_created_file = %q", got)
	}
}

func TestContextMutation_StdoutBounded(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{
		Kind:   convo.ActionCommandExecute,
		Params: map[string]any{"command": "head -c 20000 /dev/zero | tr '\\0' 'x'"},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	got, _ := s.GetVariable(convo.VarLastCommandStdout, "").(string)
	if len(got) != convo.MaxCapturedOutputBytes {
		t.Errorf("stdout bound = %d, want %d", len(got), convo.MaxCapturedOutputBytes)
	}
}

func TestTokenizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"cd /tmp", []string{"cd", "/tmp"}},
		{`xdg-open 'https://example.com/a b'`, []string{"xdg-open", "https://example.com/a b"}},
		{`echo "two words" plain`, []string{"echo", "two words", "plain"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := tokenizeCommand(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
