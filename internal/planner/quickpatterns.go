package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

var linkRefPattern = regexp.MustCompile(`(?:link|site|url|result)\s+(\d+)`)
var docRefPattern = regexp.MustCompile(`(?:open|show|read|document|doc)\s+(?:document\s+|doc\s+)?(\d+)`)

// tryQuickReferencePatterns intercepts the two pre-LLM reference
// shortcuts ("open link N" / "open document N") so the planner LLM
// never gets a chance to misread a bare number as a search query.
func (p *Planner) tryQuickReferencePatterns(userInput string, session *convo.Session) ([]*convo.Action, string) {
	lower := strings.ToLower(strings.TrimSpace(userInput))

	if strings.Contains(lower, "link") || strings.Contains(lower, "site") || strings.Contains(lower, "url") {
		if m := linkRefPattern.FindStringSubmatch(lower); m != nil {
			num, _ := strconv.Atoi(m[1])
			results := resultListVariable(session, convo.VarLastSearchResults)
			if len(results) > 0 && num >= 1 && num <= len(results) {
				url, _ := results[num-1]["url"].(string)
				if url != "" {
					cmd := fmt.Sprintf("xdg-open '%s'", url)
					return []*convo.Action{{
						Kind:          convo.ActionCommandExecute,
						Params:        map[string]any{"command": cmd},
						Description:   "Execute: " + cmd,
						NeedsApproval: true,
						Status:        convo.StatusPending,
					}}, fmt.Sprintf("Opening link #%d", num)
				}
			}
		}
	}

	if strings.Contains(lower, "open") || strings.Contains(lower, "show") || strings.Contains(lower, "read") {
		if m := docRefPattern.FindStringSubmatch(lower); m != nil {
			num, _ := strconv.Atoi(m[1])
			results := resultListVariable(session, convo.VarLastQueryResults)
			if len(results) > 0 && num >= 1 && num <= len(results) {
				path, _ := results[num-1]["file_path"].(string)
				if path == "" {
					path, _ = results[num-1]["path"].(string)
				}
				if path != "" {
					cmd := fmt.Sprintf("xdg-open '%s'", path)
					return []*convo.Action{{
						Kind:          convo.ActionCommandExecute,
						Params:        map[string]any{"command": cmd},
						Description:   "Execute: " + cmd,
						NeedsApproval: true,
						Status:        convo.StatusPending,
					}}, fmt.Sprintf("Opening document #%d", num)
				}
			}
		}
	}

	return nil, ""
}
