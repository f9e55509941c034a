package convo

import "strings"

// pronouns trigger reference resolution at word boundaries; phrases
// match as plain substrings.
var referencePronouns = []string{"it", "this", "that", "these", "those", "them"}

var referencePhrases = []string{
	"the image", "the file", "the text", "the summary", "the result",
	"the output", "last image", "last file", "previous result",
	"that image", "that file",
}

// NeedsResolution reports whether text contains a pronoun at a word
// boundary or one of the closed reference phrases.
func NeedsResolution(text string) bool {
	lower := " " + strings.ToLower(strings.TrimSpace(text)) + " "
	for _, p := range referencePronouns {
		if strings.Contains(lower, " "+p+" ") || strings.HasPrefix(strings.TrimSpace(lower), p+" ") {
			return true
		}
	}
	for _, phrase := range referencePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Resolve binds pronouns/phrases in text against stable context
// variables, returning the text unchanged and a map of resolved slot
// names (SlotImagePath, SlotFilePath, SlotMusicPath, SlotOCRText,
// SlotGeneratedText) to context values. Resolution is conservative: a
// slot only binds when both a pronoun/phrase and the matching domain
// noun are present, or when the last same-kind action result exists.
func Resolve(text string, ctx *Session) (string, map[string]any) {
	lower := strings.ToLower(text)
	resolved := map[string]any{}

	lastImage, _ := ctx.GetVariable(VarLastGeneratedImage, "").(string)
	lastMusic, _ := ctx.GetVariable(VarLastGeneratedMusic, "").(string)
	lastFile, _ := ctx.GetVariable(VarLastCreatedFile, "").(string)
	if lastFile == "" {
		if files, ok := ctx.GetVariable(VarCreatedFiles, nil).([]string); ok && len(files) > 0 {
			lastFile = files[len(files)-1]
		}
	}
	lastOCR, _ := ctx.GetVariable(VarLastOCRText, "").(string)
	lastText, _ := ctx.GetVariable(VarLastGeneratedText, "").(string)

	mentionsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	if lastImage != "" && mentionsAny("the image", "that image", "it", "this") {
		if strings.Contains(lower, "image") || ctx.GetLastActionResult(ActionImageGenerate) != nil {
			resolved[SlotImagePath] = lastImage
		}
	}

	if lastFile != "" && mentionsAny("the file", "that file", "it", "this") {
		if strings.Contains(lower, "file") {
			resolved[SlotFilePath] = lastFile
		}
	}

	if lastMusic != "" && mentionsAny("the music", "the song", "that song", "it", "this") {
		if strings.Contains(lower, "music") || strings.Contains(lower, "song") ||
			ctx.GetLastActionResult(ActionMusicGenerate) != nil {
			resolved[SlotMusicPath] = lastMusic
		}
	}

	if lastOCR != "" && mentionsAny("the text", "ocr text", "that text", "it") {
		if strings.Contains(lower, "text") || ctx.GetLastActionResult(ActionOCRCapture) != nil {
			resolved[SlotOCRText] = lastOCR
		}
	}

	if lastText != "" && mentionsAny("the summary", "the result", "that") {
		if strings.Contains(lower, "summary") || strings.Contains(lower, "result") ||
			ctx.GetLastActionResult(ActionLLMGenerate) != nil {
			resolved[SlotGeneratedText] = lastText
		}
	}

	return text, resolved
}
