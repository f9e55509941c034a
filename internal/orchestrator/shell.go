package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"os/user"
	"regexp"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/pkg/protocol"
)

// Destructive command patterns denied regardless of approval. The
// approval gate covers intent; this covers commands no assistant-planned
// workflow legitimately needs.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b\s+/\S*`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),
}

func (o *Orchestrator) executeCommand(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	command := action.ParamString("command")
	if command == "" {
		return convo.NewFailure(convo.ActionCommandExecute, convo.ErrMissingParam, "Missing command parameter")
	}

	for _, pattern := range denyPatterns {
		if pattern.MatchString(command) {
			return convo.NewFailure(convo.ActionCommandExecute, convo.ErrInvalidParam,
				"command denied by safety policy: "+pattern.String())
		}
	}

	if err := o.limiter(session.SessionID).Wait(ctx); err != nil {
		return convo.NewFailure(convo.ActionCommandExecute, convo.ErrExecutionFailure, err.Error())
	}

	timeout := o.ShellTimeout
	if timeout <= 0 {
		timeout = shellTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = session.WorkingDirectory
	if stdin := action.ParamString("stdin"); stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded {
		// The process was killed; there is no exit code to report and no
		// observability event to publish.
		return convo.NewFailure(convo.ActionCommandExecute, convo.ErrExecutionFailure,
			"command timed out after "+timeout.String())
	}

	returncode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			returncode = exitErr.ExitCode()
		} else {
			return convo.NewFailure(convo.ActionCommandExecute, convo.ErrExecutionFailure,
				"Command execution failed: "+err.Error())
		}
	}

	o.publishCommandEvent(ctx, command, returncode, session)

	details := map[string]any{
		"command":    command,
		"returncode": returncode,
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
	}
	if returncode != 0 {
		result := convo.NewFailure(convo.ActionCommandExecute, convo.ErrExecutionFailure, stderr.String())
		result.Details = details
		return result
	}
	return convo.NewSuccess(convo.ActionCommandExecute, details)
}

// publishCommandEvent emits a best-effort observability event for an
// executed command. Failures are logged and never propagate.
func (o *Orchestrator) publishCommandEvent(ctx context.Context, command string, exitCode int, session *convo.Session) {
	cwd := session.WorkingDirectory
	if cwd == "" {
		cwd, _ = session.GetVariable(convo.VarWorkingDirectory, "").(string)
	}
	username := session.UserID
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	event := protocol.CommandEvent{
		EventType: "command",
		Command:   command,
		Cwd:       cwd,
		ExitCode:  exitCode,
		User:      username,
	}
	if err := o.Bus.Publish(ctx, protocol.SubjectCommandEvent, event); err != nil {
		o.Log.Warn("command_event_publish_failed", "command", command, "error", err)
	}
}
