package planner

import (
	"log/slog"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

var musicKeywords = []string{"music", "song", "melody", "tune", "soundtrack", "audio", "track", "beat"}

var imageKeywords = []string{
	"image", "picture", "photo", "photograph", "art", "artwork", "drawing",
	"painting", "draw", "paint", "sketch", "render", "rendering", "visual",
	"illustration", "wallpaper", "graphic", "poster", "logo", "illustrate",
}

var saveKeywords = []string{"save", "download", "store", "export", "copy"}

func mentionsAnyOf(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func mentionsMusic(text string) bool { return mentionsAnyOf(text, musicKeywords) }
func mentionsImage(text string) bool { return mentionsAnyOf(text, imageKeywords) }
func mentionsSave(text string) bool  { return mentionsAnyOf(text, saveKeywords) }

// sanitizePlannedActions strips actions that clearly contradict the
// user's request, the single place the planner actively distrusts its
// own LLM output. Returns the survivors and whether anything was
// dropped.
func sanitizePlannedActions(userInput, resolvedInput string, resolvedValues map[string]any, session *convo.Session, actions []*convo.Action) ([]*convo.Action, bool) {
	combined := strings.ToLower(userInput + " " + resolvedInput)
	wantsMusic := mentionsMusic(combined)
	wantsImage := mentionsImage(combined)
	wantsSave := mentionsSave(combined)

	hasContextMusic := session.GetVariable(convo.VarLastGeneratedMusic, "") != "" || resolvedValues[convo.SlotMusicPath] != nil
	hasContextImage := session.GetVariable(convo.VarLastGeneratedImage, "") != "" || resolvedValues[convo.SlotImagePath] != nil

	sanitized := make([]*convo.Action, 0, len(actions))
	dropped := false

	for _, action := range actions {
		if action.Kind == convo.ActionMusicGenerate || action.Kind == convo.ActionMusicSave {
			if !wantsMusic {
				slog.Default().Warn("dropping_unrelated_music_action", "user_input", userInput, "description", action.Description)
				dropped = true
				continue
			}
			if action.Kind == convo.ActionMusicSave && !(wantsSave || hasContextMusic) {
				dropped = true
				continue
			}
		}

		if action.Kind == convo.ActionImageGenerate || action.Kind == convo.ActionImageSave {
			if action.Kind == convo.ActionImageSave {
				if !wantsSave {
					dropped = true
					continue
				}
				if !(wantsImage || hasContextImage) {
					dropped = true
					continue
				}
			} else if !wantsImage {
				dropped = true
				continue
			}
		}

		sanitized = append(sanitized, action)
	}

	return sanitized, dropped
}
