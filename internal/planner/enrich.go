package planner

import (
	"regexp"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

// contextPlaceholders maps the reserved double-brace tokens to the
// context variables they read from. llm_output is deliberately absent:
// it binds to the in-plan output chain at execution time, not here.
var contextPlaceholders = map[string]string{
	"{{last_created_file}}":    convo.VarLastCreatedFile,
	"{{last_generated_image}}": convo.VarLastGeneratedImage,
	"{{last_ocr_text}}":        convo.VarLastOCRText,
	"{{last_generated_music}}": convo.VarLastGeneratedMusic,
}

// enrichActionParams substitutes known context placeholders into string
// params and backfills save-action sources from resolved references. A
// placeholder whose context variable is unset is left in place so the
// executor can recognize a still-pending dependency.
func enrichActionParams(action *convo.Action, resolvedValues map[string]any, session *convo.Session) {
	for key, raw := range action.Params {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		for token, variable := range contextPlaceholders {
			if !strings.Contains(value, token) {
				continue
			}
			if v, _ := session.GetVariable(variable, "").(string); v != "" {
				value = strings.ReplaceAll(value, token, v)
			}
		}
		action.Params[key] = value
	}

	if action.Kind == convo.ActionImageSave {
		if action.ParamString("src_path") == "" {
			if v, ok := resolvedValues[convo.SlotImagePath].(string); ok && v != "" {
				action.Params["src_path"] = v
			}
		}
	}
	if action.Kind == convo.ActionMusicSave {
		if action.ParamString("src_path") == "" {
			if v, ok := resolvedValues[convo.SlotMusicPath].(string); ok && v != "" {
				action.Params["src_path"] = v
			}
		}
	}
}

var (
	xdgOpenBareRe   = regexp.MustCompile(`^xdg-open\s+([^'"\s]+)\s*$`)
	xdgOpenQuotedRe = regexp.MustCompile(`^xdg-open\s+["']?([^"']+)["']?\s*$`)
	xdgOpenDescRe   = regexp.MustCompile(`(?:Execute:\s*)?xdg-open\s+["']?[^"']+["']?`)
)

// fixApplicationOpeningCommand rewrites `xdg-open <app>` into `<app> &`
// when the target is neither a URL nor a file path — xdg-open treats a
// bare application name as a missing file.
func fixApplicationOpeningCommand(action *convo.Action) {
	if action.Kind != convo.ActionCommandExecute {
		return
	}
	command := strings.TrimSpace(action.ParamString("command"))

	m := xdgOpenBareRe.FindStringSubmatch(command)
	if m == nil {
		m = xdgOpenQuotedRe.FindStringSubmatch(command)
	}
	if m == nil {
		return
	}
	target := m[1]

	isURL := strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "file://")
	isFilePath := strings.Contains(target, "/") ||
		strings.HasPrefix(target, "~") ||
		strings.HasPrefix(target, ".") ||
		strings.HasSuffix(target, ".desktop") ||
		hasKnownExtension(target)
	if isURL || isFilePath {
		return
	}

	fixed := target + " &"
	action.Params["command"] = fixed
	if action.Description != "" {
		action.Description = xdgOpenDescRe.ReplaceAllString(action.Description, "Execute: "+fixed)
	}
}

func hasKnownExtension(target string) bool {
	idx := strings.LastIndex(target, ".")
	if idx <= 0 || idx == len(target)-1 {
		return false
	}
	return fileExtensions[strings.ToLower(target[idx+1:])]
}
