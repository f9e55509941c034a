package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neuralux/convoengine/internal/convo"
)

type llmPlanMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmPlanRequest struct {
	Messages    []llmPlanMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type llmPlanReply struct {
	Content string `json:"content"`
}

type plannedActionData struct {
	ActionType    string         `json:"action_type"`
	Params        map[string]any `json:"params"`
	Description   string         `json:"description"`
	NeedsApproval *bool          `json:"needs_approval"`
}

type plannedResponse struct {
	Explanation string              `json:"explanation"`
	Actions     []plannedActionData `json:"actions"`
}

var jsonFencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(\{.*?\})\s*` + "```")

// llmPlanActions asks ai.llm.request to plan actions, parses its JSON
// reply, and falls back to deterministic planning on any transport or
// parse failure.
func (p *Planner) llmPlanActions(ctx context.Context, originalInput, resolvedInput string, resolvedValues map[string]any, session *convo.Session) ([]*convo.Action, string) {
	systemPrompt := buildActionPlanningPrompt(session, resolvedValues)
	userMessage := fmt.Sprintf(`User request: %s

Plan the required actions to fulfill this request. Respond in JSON format with:
{
  "explanation": "Brief explanation of what you'll do",
  "actions": [
    {
      "action_type": "music_generate|music_save|image_generate|image_save|llm_generate|ocr_capture|command_execute|document_query|web_search",
      "params": {},
      "description": "What this action does",
      "needs_approval": true/false
    }
  ]
}

CRITICAL REMINDERS:
- For music generation: use music_generate (NOT image_generate, NOT llm_generate, NOT command_execute)
- For saving music: use music_save (NOT image_save, NOT command_execute)
- Music is audio data, NOT text - never use echo/cat/write commands for music`, originalInput)

	req := llmPlanRequest{
		Messages: []llmPlanMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	}

	var reply llmPlanReply
	if err := p.Bus.Request(ctx, "ai.llm.request", req, 20*time.Second, &reply); err != nil {
		p.Log.Error("llm_action_planning_failed", "error", err)
		return fallbackPlanActions(originalInput, resolvedValues, session)
	}

	plan, err := parsePlanJSON(reply.Content)
	if err != nil {
		p.Log.Error("llm_action_planning_parse_failed", "error", err)
		return fallbackPlanActions(originalInput, resolvedValues, session)
	}

	explanation := plan.Explanation
	if explanation == "" {
		explanation = "Processing your request"
	}

	actions := make([]*convo.Action, 0, len(plan.Actions))
	for _, data := range plan.Actions {
		kind := convo.ActionKind(data.ActionType)
		if !isKnownActionKind(kind) {
			kind = convo.ActionLLMGenerate
		}
		needsApproval := true
		if data.NeedsApproval != nil {
			needsApproval = *data.NeedsApproval
		}
		if data.Params == nil {
			data.Params = map[string]any{}
		}
		actions = append(actions, &convo.Action{
			Kind:          kind,
			Params:        data.Params,
			Description:   data.Description,
			NeedsApproval: needsApproval,
			Status:        convo.StatusPending,
		})
	}

	return actions, explanation
}

func isKnownActionKind(kind convo.ActionKind) bool {
	for _, k := range convo.AllActionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// parsePlanJSON extracts the JSON object out of an LLM reply that may
// wrap it in markdown fences or trailing prose, matching the
// extraction order of the original planner: fenced block first, then
// brace-counted prefix.
func parsePlanJSON(content string) (*plannedResponse, error) {
	jsonStr := strings.TrimSpace(content)

	if m := jsonFencePattern.FindStringSubmatch(content); m != nil {
		jsonStr = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(jsonStr, "{") {
		depth := 0
		endPos := 0
		for i, ch := range jsonStr {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					endPos = i + 1
				}
			}
			if depth == 0 && endPos > 0 {
				break
			}
		}
		if endPos > 0 {
			jsonStr = jsonStr[:endPos]
		}
	}

	var plan plannedResponse
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, fmt.Errorf("planner: decode plan json: %w", err)
	}
	return &plan, nil
}
