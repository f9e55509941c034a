package orchestrator

import (
	"regexp"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/fileops"
)

// updateContextVariables applies the per-kind mutation rules after a
// successful action so subsequent planning and placeholder substitution
// see the result.
func (o *Orchestrator) updateContextVariables(action *convo.Action, result *convo.ActionResult, session *convo.Session) {
	details := result.Details

	switch action.Kind {
	case convo.ActionLLMGenerate:
		if content, _ := details["content"].(string); content != "" {
			session.SetVariable(convo.VarLastGeneratedText, content)
		}

	case convo.ActionImageGenerate:
		if path, _ := details["image_path"].(string); path != "" {
			session.SetVariable(convo.VarLastGeneratedImage, path)
		}

	case convo.ActionMusicGenerate:
		if path, _ := details["file_path"].(string); path != "" {
			session.SetVariable(convo.VarLastGeneratedMusic, path)
		}

	case convo.ActionMusicSave:
		if path, _ := details["saved_path"].(string); path != "" {
			session.SetVariable(convo.VarLastSavedMusic, path)
		}

	case convo.ActionImageSave:
		if path, _ := details["saved_path"].(string); path != "" {
			session.SetVariable(convo.VarLastSavedImage, path)
		}

	case convo.ActionOCRCapture:
		if text, _ := details["text"].(string); text != "" {
			session.SetVariable(convo.VarLastOCRText, text)
		}

	case convo.ActionDocumentQuery:
		if results, ok := details["results"].([]map[string]any); ok {
			session.SetVariable(convo.VarLastQueryResults, results)
			query, _ := details["query"].(string)
			session.SetVariable(convo.VarLastQuery, query)
		}

	case convo.ActionWebSearch:
		if results, ok := details["results"].([]map[string]any); ok {
			session.SetVariable(convo.VarLastSearchResults, results)
			query, _ := details["query"].(string)
			session.SetVariable(convo.VarLastSearchQuery, query)
		}

	case convo.ActionCommandExecute:
		o.updateCommandContext(details, session)
	}
}

var redirectTargetRe = regexp.MustCompile(`>\s*([^\s]+)\s*$`)

func (o *Orchestrator) updateCommandContext(details map[string]any, session *convo.Session) {
	command, _ := details["command"].(string)
	if command != "" {
		session.SetVariable(convo.VarLastCommand, command)
	}
	if code, ok := details["returncode"].(int); ok {
		session.SetVariable(convo.VarLastCommandExitCode, code)
	}
	if stdout, _ := details["stdout"].(string); stdout != "" {
		session.SetVariable(convo.VarLastCommandStdout, boundOutput(stdout))
	}
	if stderr, _ := details["stderr"].(string); stderr != "" {
		session.SetVariable(convo.VarLastCommandStderr, boundOutput(stderr))
	}
	if command == "" {
		return
	}

	tokens := tokenizeCommand(command)
	if len(tokens) == 0 {
		return
	}
	cmd, args := tokens[0], tokens[1:]

	expand := func(p string) string {
		return fileops.Expand(p, session.WorkingDirectory)
	}

	switch cmd {
	case "cd":
		if len(args) > 0 {
			newDir := expand(args[0])
			session.SetVariable(convo.VarWorkingDirectory, newDir)
			session.WorkingDirectory = newDir
		}
		return

	case "mkdir":
		var dirs []string
		for _, a := range args {
			if !strings.HasPrefix(a, "-") {
				dirs = append(dirs, a)
			}
		}
		if len(dirs) > 0 {
			last := expand(dirs[len(dirs)-1])
			session.SetVariable(convo.VarLastCreatedDir, last)
			created := stringSliceVariable(session, convo.VarCreatedDirs)
			session.SetVariable(convo.VarCreatedDirs, append(created, last))
			// Adopt the new directory so chained commands land in it.
			session.SetVariable(convo.VarWorkingDirectory, last)
			session.WorkingDirectory = last
		}
		return
	}

	var targetPath string
	if m := redirectTargetRe.FindStringSubmatch(command); m != nil {
		targetPath = m[1]
	}
	if cmd == "touch" && len(args) > 0 {
		targetPath = args[len(args)-1]
	}
	if targetPath != "" {
		abs := expand(targetPath)
		session.SetVariable(convo.VarLastCreatedFile, abs)
		created := stringSliceVariable(session, convo.VarCreatedFiles)
		session.SetVariable(convo.VarCreatedFiles, append(created, abs))
	}

	if (cmd == "mv" || cmd == "cp") && len(args) >= 2 {
		session.SetVariable(convo.VarLastCreatedFile, expand(args[len(args)-1]))
	}
}

func boundOutput(s string) string {
	if len(s) > convo.MaxCapturedOutputBytes {
		return s[:convo.MaxCapturedOutputBytes]
	}
	return s
}

// stringSliceVariable reads a list variable regardless of whether it
// was set in-process ([]string) or round-tripped through JSON ([]any).
func stringSliceVariable(session *convo.Session, key string) []string {
	switch v := session.GetVariable(key, nil).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// tokenizeCommand splits a shell command into tokens, respecting single
// and double quotes and backslash escapes. Malformed quoting falls back
// to whitespace splitting.
func tokenizeCommand(command string) []string {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote rune

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inToken = true
		case ch == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			inToken = true
		case ch == ' ' || ch == '\t':
			flush()
		default:
			current.WriteRune(ch)
			inToken = true
		}
	}
	if quote != 0 {
		return strings.Fields(command)
	}
	flush()
	return tokens
}
