package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

var musicPhrasePatterns = []string{
	"generate music", "generate a song", "generate song",
	"create music", "create a song", "create song",
	"make music", "make a song", "make song",
	"compose music", "compose a song", "compose song",
}

var implicitMusicKeywords = []string{"song", "music", "tune", "melody", "track", "piece"}

var notCommandWords = []string{"run", "execute", "list", "show", "find", "search", "open"}

var implicitMusicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^a\s+song\s+(about|of|for|with)`),
	regexp.MustCompile(`(?i)^an?\s+.*\s+song\s+(about|of|for|with)`),
	regexp.MustCompile(`(?i).*\s+song\s+about`),
	regexp.MustCompile(`(?i).*\s+music\s+(about|of|for|with|in)`),
	regexp.MustCompile(`(?i)^(medieval|rock|jazz|classical|electronic|folk|pop|metal|country|blues|hip.?hop|rap|r&b)\s+(song|music|tune)`),
}

var musicGeneratePrefix = regexp.MustCompile(`(?i)^(generate|create|make|compose)\s+(?:a\s+|an\s+)?(?:song|music)\s*,?\s*`)
var musicGenerateAlt = regexp.MustCompile(`(?i)^(generate|create|make|compose)\s+(.+?)\s+(?:music|song)`)

// tryMusicFastPath intercepts music generation requests before the
// planner LLM, since the LLM occasionally confuses "music" with text
// generation or file writes. Returns matched=false when the input is
// not a music request.
func (p *Planner) tryMusicFastPath(userInput string) (actions []*convo.Action, explanation string, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(userInput))

	isMusicRequest := false
	for _, pat := range musicPhrasePatterns {
		if strings.Contains(lower, pat) {
			isMusicRequest = true
			break
		}
	}

	hasMusicKeyword := false
	for _, kw := range implicitMusicKeywords {
		if strings.Contains(lower, kw) {
			hasMusicKeyword = true
			break
		}
	}
	isDescriptive := len(strings.Fields(userInput)) <= 10
	isNotCommand := true
	for _, cmd := range notCommandWords {
		if strings.Contains(lower, cmd) {
			isNotCommand = false
			break
		}
	}
	matchesPattern := false
	for _, re := range implicitMusicPatterns {
		if re.MatchString(lower) {
			matchesPattern = true
			break
		}
	}
	isImplicitMusic := hasMusicKeyword && (matchesPattern || (isDescriptive && isNotCommand))

	if !(isMusicRequest || isImplicitMusic) {
		return nil, "", false
	}
	if strings.Contains(lower, "lyric") || strings.Contains(lower, "text") {
		return nil, "", false
	}

	prompt := strings.TrimSpace(userInput)
	if isMusicRequest {
		prompt = strings.TrimSpace(musicGeneratePrefix.ReplaceAllString(prompt, ""))
		if len(prompt) < 3 {
			if m := musicGenerateAlt.FindStringSubmatch(lower); m != nil && m[2] != "" {
				prompt = strings.TrimSpace(m[2])
			}
		}
	}
	if len(prompt) < 3 {
		prompt = "an upbeat, happy song"
	}

	actions = []*convo.Action{
		{
			Kind:          convo.ActionMusicGenerate,
			Params:        map[string]any{"prompt": prompt},
			Description:   "Generate music: " + prompt,
			NeedsApproval: true,
			Status:        convo.StatusPending,
		},
	}
	explanation = "Generating music: " + prompt

	// A save step only rides along when the user actually asked for one;
	// a bare "generate a song" must never queue a music_save.
	if mentionsSave(lower) {
		dst := "~/Music"
		if m := saveDestRe.FindStringSubmatch(lower); m != nil {
			if d := strings.TrimSpace(m[1]); d != "" && !strings.Contains(d, "song") && !strings.Contains(d, "music") {
				dst = d
			}
		}
		actions = append(actions, &convo.Action{
			Kind:          convo.ActionMusicSave,
			Params:        map[string]any{"src_path": "{{last_generated_music}}", "dst_path": dst},
			Description:   "Save generated music to " + dst,
			NeedsApproval: true,
			Status:        convo.StatusPending,
		})
		explanation = fmt.Sprintf("Generating music: %s and saving to %s", prompt, dst)
	}
	return actions, explanation, true
}

// extractMusicPrompt is the best-effort fallback used to backfill a
// missing music_generate prompt after planning.
func extractMusicPrompt(userInput string) string {
	prompt := strings.TrimSpace(musicGeneratePrefix.ReplaceAllString(strings.TrimSpace(userInput), ""))
	if len(prompt) < 3 {
		return strings.TrimSpace(userInput)
	}
	return prompt
}
