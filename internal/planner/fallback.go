package planner

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

var (
	createFileNameRe1 = regexp.MustCompile(`create\s+(?:a\s+|an\s+)?([^\s]+)\s+file`)
	createFileNameRe2 = regexp.MustCompile(`create\s+(?:a\s+)?file\s+(?:named|called)\s+([^\s]+)`)
	createFileNameRe3 = regexp.MustCompile(`create\s+file\s+([^\s]+)`)
	namedRe           = regexp.MustCompile(`named?\s+([^\s]+)`)
	writeTargetRe     = regexp.MustCompile(`(?:in|to)\s+([^\s]+)\b`)
	writeTopicRe      = regexp.MustCompile(`of\s+(.+?)(?:\s+to|\s+in|$)`)
	saveDestRe        = regexp.MustCompile(`to\s+(?:my\s+)?(.+?)(?:\s+folder|$)`)
	imagePromptRe     = regexp.MustCompile(`image\s+(?:of\s+)?(.+?)(?:\s+and|\s+then|$)`)
	musicPromptRe     = regexp.MustCompile(`(?i)generate\s+(?:a\s+|an\s+)?(?:song|music)\s*,?\s*(.+)`)
	musicPromptAltRe  = regexp.MustCompile(`(?i)generate\s+(.+\s+)?(?:music|song)`)
	musicTrailRe      = regexp.MustCompile(`(?i)\s+and\s+(save|store).*$`)
	searchQueryRe     = regexp.MustCompile(`(?:search|find)(?:\s+my)?(?:\s+documents?)?(?:\s+for)?\s+(.+)`)
	webQueryRe        = regexp.MustCompile(`(?i)(?:search|google|find)(?:\s+(?:for|the|web|internet))?\s+(.+)`)
	readFileRe        = regexp.MustCompile(`(?:read|cat|show)\s+(.+?)(?:\s+file)?$`)
	appNameRe         = regexp.MustCompile(`(?i)(?:open|launch|start)\s+(.+)`)
	appTrailRe        = regexp.MustCompile(`(?i)\s+(?:application|app|program|software)\s*$`)
	ocrRegionRe       = regexp.MustCompile(`region\s+([\d,]+)`)
	anyNumberRe       = regexp.MustCompile(`\d+`)
)

var fileExtensions = map[string]bool{
	"txt": true, "pdf": true, "doc": true, "docx": true, "odt": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true,
	"mp4": true, "mp3": true, "wav": true, "ogg": true,
	"zip": true, "tar": true, "gz": true,
}

var libreofficeComponents = map[string]string{
	"writer":  "--writer",
	"calc":    "--calc",
	"impress": "--impress",
	"draw":    "--draw",
	"math":    "--math",
	"base":    "--base",
}

func commandAction(command string) *convo.Action {
	return &convo.Action{
		Kind:          convo.ActionCommandExecute,
		Params:        map[string]any{"command": command},
		Description:   "Execute: " + command,
		NeedsApproval: true,
		Status:        convo.StatusPending,
	}
}

// fallbackPlanActions is the deterministic rule-table planner used when
// the LLM is unavailable, unparseable, or sanitization emptied its
// plan. Rules are ordered most-specific first; the final default hands
// the utterance back to llm_generate.
func fallbackPlanActions(userInput string, resolvedValues map[string]any, session *convo.Session) ([]*convo.Action, string) {
	slog.Default().Info("using_fallback_action_planning")

	var actions []*convo.Action
	explanation := "Processing your request"
	lower := strings.ToLower(userInput)

	switch {
	case strings.Contains(lower, "create") && strings.Contains(lower, "file"):
		filename := firstSubmatch(lower, createFileNameRe2, createFileNameRe3, createFileNameRe1, namedRe)
		if filename != "" {
			filename = strings.TrimRight(filename, "/")
			cmd := "touch " + filename
			actions = append(actions, commandAction(cmd))
			explanation = "Creating file " + filename
		}

	case strings.Contains(lower, "create") && (strings.Contains(lower, "folder") || strings.Contains(lower, "directory") || strings.Contains(lower, "dir")):
		if m := namedRe.FindStringSubmatch(lower); m != nil {
			foldername := m[1]
			if !strings.HasPrefix(foldername, "/") && !strings.HasPrefix(foldername, "~") {
				foldername = "~/" + foldername
			}
			actions = append(actions, commandAction("mkdir -p "+foldername))
			explanation = "Creating directory " + foldername
		}

	case strings.Contains(lower, "write") && (strings.Contains(lower, "to") || strings.Contains(lower, "in")):
		if strings.Contains(lower, "summary") || strings.Contains(lower, "about") {
			topic := "the requested topic"
			if m := writeTopicRe.FindStringSubmatch(lower); m != nil {
				topic = strings.TrimSpace(m[1])
			}
			actions = append(actions, &convo.Action{
				Kind:          convo.ActionLLMGenerate,
				Params:        map[string]any{"prompt": "Write a concise summary about " + topic},
				Description:   "Generate summary about " + topic,
				NeedsApproval: false,
				Status:        convo.StatusPending,
			})
		}

		filePath, _ := resolvedValues[convo.SlotFilePath].(string)
		if filePath == "" {
			filePath, _ = session.GetVariable(convo.VarLastCreatedFile, "output.txt").(string)
		}
		if m := writeTargetRe.FindStringSubmatch(lower); m != nil {
			candidate := strings.TrimRight(m[1], "/")
			if strings.Contains(candidate, ".") && !strings.HasSuffix(candidate, ".") {
				filePath = candidate
			}
		}

		cmd := "cat > " + filePath
		action := commandAction(cmd)
		action.Description = "Execute: " + cmd + " (with generated content)"
		actions = append(actions, action)
		explanation = "Writing content to " + filePath

	case strings.Contains(lower, "save") && (strings.Contains(lower, "music") || strings.Contains(lower, "song") ||
		(strings.Contains(lower, "it") && session.GetVariable(convo.VarLastGeneratedMusic, "") != "")):
		destination := "~/Music"
		if m := saveDestRe.FindStringSubmatch(lower); m != nil {
			destination = strings.TrimSpace(m[1])
		}
		srcPath, _ := resolvedValues[convo.SlotMusicPath].(string)
		if srcPath == "" {
			srcPath, _ = session.GetVariable(convo.VarLastGeneratedMusic, "").(string)
		}
		if srcPath != "" {
			actions = append(actions, &convo.Action{
				Kind:          convo.ActionMusicSave,
				Params:        map[string]any{"src_path": srcPath, "dst_path": destination},
				Description:   "Save music to " + destination,
				NeedsApproval: true,
				Status:        convo.StatusPending,
			})
			explanation = "Saving music to " + destination
		}

	case strings.Contains(lower, "generate") && strings.Contains(lower, "image"):
		prompt := "a beautiful scene"
		if m := imagePromptRe.FindStringSubmatch(lower); m != nil {
			prompt = strings.TrimSpace(m[1])
		}
		actions = append(actions, &convo.Action{
			Kind:          convo.ActionImageGenerate,
			Params:        map[string]any{"prompt": prompt},
			Description:   "Generate image: " + prompt,
			NeedsApproval: false,
			Status:        convo.StatusPending,
		})
		explanation = "Generating image: " + prompt

	case strings.Contains(lower, "generate") && (strings.Contains(lower, "music") || strings.Contains(lower, "song")):
		var prompt string
		if m := musicPromptRe.FindStringSubmatch(lower); m != nil {
			prompt = strings.TrimSpace(musicTrailRe.ReplaceAllString(m[1], ""))
		} else if m := musicPromptAltRe.FindStringSubmatch(lower); m != nil && strings.TrimSpace(m[1]) != "" {
			prompt = strings.TrimRight(strings.TrimSpace(m[1]), ",")
		} else {
			prompt = strings.TrimSpace(userInput)
		}
		if len(prompt) < 3 {
			prompt = "an upbeat, happy song"
		}
		actions = append(actions, &convo.Action{
			Kind:          convo.ActionMusicGenerate,
			Params:        map[string]any{"prompt": prompt},
			Description:   "Generate music: " + prompt,
			NeedsApproval: true,
			Status:        convo.StatusPending,
		})
		explanation = "Generating music: " + prompt

	case strings.Contains(lower, "save") && (strings.Contains(lower, "image") || strings.Contains(lower, "it")):
		destination := "~/Pictures"
		if m := saveDestRe.FindStringSubmatch(lower); m != nil {
			destination = strings.TrimSpace(m[1])
		}
		srcPath, _ := resolvedValues[convo.SlotImagePath].(string)
		if srcPath == "" {
			srcPath, _ = session.GetVariable(convo.VarLastGeneratedImage, "").(string)
		}
		if srcPath != "" {
			actions = append(actions, &convo.Action{
				Kind:          convo.ActionImageSave,
				Params:        map[string]any{"src_path": srcPath, "dst_path": destination},
				Description:   "Save image to " + destination,
				NeedsApproval: true,
				Status:        convo.StatusPending,
			})
			explanation = "Saving image to " + destination
		}

	case strings.Contains(lower, "list") && (strings.Contains(lower, "file") || strings.Contains(lower, "folder") || strings.Contains(lower, "director")):
		path := "~"
		if strings.Contains(lower, "current") || strings.Contains(lower, "here") {
			path = "."
		}
		actions = append(actions, commandAction("ls -la "+path))
		explanation = "Listing files in " + path

	case strings.Contains(lower, "search") && (strings.Contains(lower, "document") || strings.Contains(lower, "file") || strings.Contains(lower, "my")):
		if m := searchQueryRe.FindStringSubmatch(lower); m != nil {
			query := strings.TrimSpace(m[1])
			actions = append(actions, &convo.Action{
				Kind:          convo.ActionDocumentQuery,
				Params:        map[string]any{"query": query, "limit": 10},
				Description:   "Search: " + query,
				NeedsApproval: false,
				Status:        convo.StatusPending,
			})
			explanation = "Searching documents for: " + query
		}

	case strings.Contains(lower, "search") && (strings.Contains(lower, "web") || strings.Contains(lower, "google") || strings.Contains(lower, "duckduckgo") || strings.Contains(lower, "internet")):
		if m := webQueryRe.FindStringSubmatch(lower); m != nil {
			query := strings.TrimSpace(m[1])
			actions = append(actions, &convo.Action{
				Kind:          convo.ActionWebSearch,
				Params:        map[string]any{"query": query, "limit": 5},
				Description:   "Search web: " + query,
				NeedsApproval: false,
				Status:        convo.StatusPending,
			})
			explanation = "Searching web for: " + query
		}

	case (strings.Contains(lower, "open") || strings.Contains(lower, "visit") || strings.Contains(lower, "go to")) &&
		(strings.Contains(lower, "link") || strings.Contains(lower, "site") || strings.Contains(lower, "url")):
		if a, e := openNumberedResult(lower, linkRefPattern, session, convo.VarLastSearchResults, "url", "link"); a != nil {
			actions = append(actions, a)
			explanation = e
		}

	case strings.Contains(lower, "open") || strings.Contains(lower, "launch") || strings.Contains(lower, "start"):
		hasNumber := anyNumberRe.MatchString(lower)
		hasFileKeywords := strings.Contains(lower, "document") || strings.Contains(lower, "doc") ||
			strings.Contains(lower, "file") || strings.Contains(lower, "folder") ||
			strings.Contains(lower, "directory") || strings.Contains(lower, "path")
		hasURL := strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "www.")

		if !hasNumber && !hasFileKeywords && !hasURL {
			if m := appNameRe.FindStringSubmatch(lower); m != nil {
				appName := strings.TrimSpace(appTrailRe.ReplaceAllString(strings.TrimSpace(m[1]), ""))
				if !looksLikeFilePath(appName) {
					var cmd string
					if strings.HasPrefix(appName, "libreoffice ") {
						component := strings.TrimSpace(strings.TrimPrefix(appName, "libreoffice "))
						if flag, ok := libreofficeComponents[component]; ok {
							cmd = "libreoffice " + flag + " &"
						} else {
							cmd = "libreoffice --" + component + " &"
						}
					} else {
						cmd = appName + " &"
					}
					actions = append(actions, commandAction(cmd))
					explanation = "Opening " + appName
				}
			}
		} else if strings.Contains(lower, "open") || strings.Contains(lower, "show") || strings.Contains(lower, "read") {
			if a, e := openNumberedResult(lower, docRefPattern, session, convo.VarLastQueryResults, "file_path", "document"); a != nil {
				actions = append(actions, a)
				explanation = e
			}
		}

	case strings.Contains(lower, "read") || strings.Contains(lower, "cat") || strings.Contains(lower, "show"):
		if m := readFileRe.FindStringSubmatch(lower); m != nil {
			filename := strings.TrimSpace(m[1])
			actions = append(actions, commandAction("cat "+filename))
			explanation = "Reading file " + filename
		}

	case strings.Contains(lower, "ocr") || strings.Contains(lower, "extract text"):
		params := map[string]any{}
		if strings.Contains(lower, "window") {
			params["window"] = true
		} else if m := ocrRegionRe.FindStringSubmatch(lower); m != nil {
			params["region"] = m[1]
		}
		actions = append(actions, &convo.Action{
			Kind:          convo.ActionOCRCapture,
			Params:        params,
			Description:   "Capture text from screen",
			NeedsApproval: false,
			Status:        convo.StatusPending,
		})
		explanation = "Capturing text via OCR"
	}

	if len(actions) == 0 {
		actions = append(actions, &convo.Action{
			Kind:          convo.ActionLLMGenerate,
			Params:        map[string]any{"prompt": userInput, "use_history": true},
			Description:   "Process request",
			NeedsApproval: false,
			Status:        convo.StatusPending,
		})
		explanation = "Processing your request"
	}

	return actions, explanation
}

// openNumberedResult resolves "open link 2"-style references against a
// stored result list.
func openNumberedResult(lower string, pattern *regexp.Regexp, session *convo.Session, variable, pathKey, noun string) (*convo.Action, string) {
	m := pattern.FindStringSubmatch(lower)
	if m == nil {
		return nil, ""
	}
	num := 0
	fmt.Sscanf(m[1], "%d", &num)

	results := resultListVariable(session, variable)
	if num < 1 || num > len(results) {
		return nil, ""
	}
	target, _ := results[num-1][pathKey].(string)
	if target == "" && pathKey == "file_path" {
		target, _ = results[num-1]["path"].(string)
	}
	if target == "" {
		return nil, ""
	}
	cmd := fmt.Sprintf("xdg-open '%s'", target)
	return commandAction(cmd), fmt.Sprintf("Opening %s #%d", noun, num)
}

// resultListVariable reads a stored result list regardless of whether
// it was set in-process or decoded from persisted JSON.
func resultListVariable(session *convo.Session, key string) []map[string]any {
	switch v := session.GetVariable(key, nil).(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func looksLikeFilePath(name string) bool {
	if strings.Contains(name, "/") || strings.HasPrefix(name, "~") || strings.HasPrefix(name, ".") {
		return true
	}
	if idx := strings.LastIndex(name, "."); idx > 0 && idx < len(name)-1 {
		return fileExtensions[strings.ToLower(name[idx+1:])]
	}
	return false
}

func firstSubmatch(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}
