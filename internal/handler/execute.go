package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/neuralux/convoengine/internal/convo"
)

var (
	singleBraceRe  = regexp.MustCompile(`\{([^{}]+)\}`)
	echoRedirectRe = regexp.MustCompile(`>\s*(.+)$`)
)

// executeActions runs the plan sequentially, chaining outputs between
// steps, and builds the cycle's response. The assistant turn is
// appended and the session persisted before returning.
func (h *Handler) executeActions(ctx context.Context, actions []*convo.Action, explanation string) *Response {
	var executed []ExecutedAction
	contextUpdates := map[string]any{}
	outputChain := map[string]any{}

	for i, action := range actions {
		h.log.Info("executing_plan_step",
			"step", i+1,
			"total", len(actions),
			"action_type", action.Kind,
		)

		h.substitutePlaceholders(action, outputChain)
		h.rewriteGeneratedContentCommand(action, outputChain)

		// music_save cannot run until the asynchronous generation has
		// delivered a file; leave it for the post-join continuation.
		if action.Kind == convo.ActionMusicSave {
			musicPath, _ := h.session.GetVariable(convo.VarLastGeneratedMusic, "").(string)
			if musicPath == "" || strings.Contains(action.ParamString("src_path"), "{{") {
				continue
			}
		}

		result := h.orch.ExecuteAction(ctx, action, h.session)

		executed = append(executed, ExecutedAction{
			ActionType:  action.Kind,
			Description: action.Description,
			Success:     result.Success,
			Details:     result.Details,
			Error:       result.Error,
		})

		if result.Success {
			switch action.Kind {
			case convo.ActionLLMGenerate:
				outputChain["llm_output"], _ = result.Details["content"].(string)
			case convo.ActionImageGenerate:
				outputChain["image_path"], _ = result.Details["image_path"].(string)
			case convo.ActionMusicGenerate:
				if status, _ := result.Details["status"].(string); status == "pending" {
					outputChain["music_pending"] = true
				} else {
					outputChain["music_path"], _ = result.Details["file_path"].(string)
				}
			}
		}

		for k, v := range h.session.Variables {
			contextUpdates[k] = v
		}

		if !result.Success && action.NeedsApproval {
			h.log.Warn("critical_action_failed", "action_type", action.Kind)
			break
		}
	}

	resp := h.buildResponse(actions, executed, contextUpdates)

	h.session.AddTurn(convo.Turn{
		Role:      convo.RoleAssistant,
		Content:   resp.Message,
		Timestamp: convo.NowMillis(),
	})
	h.persist(ctx)
	return resp
}

// substitutePlaceholders resolves {{slot}} tokens against the in-plan
// output chain and {var} tokens against context variables first, the
// output chain second.
func (h *Handler) substitutePlaceholders(action *convo.Action, outputChain map[string]any) {
	for key, raw := range action.Params {
		value, ok := raw.(string)
		if !ok || !strings.Contains(value, "{") {
			continue
		}

		if strings.Contains(value, "{{llm_output}}") {
			if out, _ := outputChain["llm_output"].(string); out != "" {
				value = strings.ReplaceAll(value, "{{llm_output}}", out)
			}
		}
		if strings.Contains(value, "{{image_path}}") {
			if out, _ := outputChain["image_path"].(string); out != "" {
				value = strings.ReplaceAll(value, "{{image_path}}", out)
			}
		}
		if strings.Contains(value, "{{music_path}}") {
			if out, _ := outputChain["music_path"].(string); out != "" {
				value = strings.ReplaceAll(value, "{{music_path}}", out)
			}
		}

		for _, m := range singleBraceRe.FindAllStringSubmatch(value, -1) {
			name := m[1]
			// Leave reserved double-brace slots for their own pass.
			if strings.Contains(value, "{{"+name+"}}") {
				continue
			}
			token := "{" + name + "}"
			if v := h.session.GetVariable(name, nil); v != nil {
				value = strings.ReplaceAll(value, token, fmt.Sprintf("%v", v))
			} else if v, ok := outputChain[name]; ok {
				value = strings.ReplaceAll(value, token, fmt.Sprintf("%v", v))
			}
		}

		action.Params[key] = value
	}
}

// rewriteGeneratedContentCommand reroutes generated text into a file
// write via stdin: "echo '…' > F" becomes "cat > F" with the llm output
// attached, and a bare "cat > F" just gains the stdin attachment.
func (h *Handler) rewriteGeneratedContentCommand(action *convo.Action, outputChain map[string]any) {
	if action.Kind != convo.ActionCommandExecute {
		return
	}
	llmOutput, _ := outputChain["llm_output"].(string)
	if llmOutput == "" {
		return
	}
	command := action.ParamString("command")
	if !strings.Contains(command, ">") && !strings.Contains(strings.ToLower(command), "cat") {
		return
	}

	if strings.HasPrefix(command, "echo ") {
		if m := echoRedirectRe.FindStringSubmatch(command); m != nil {
			filename := strings.TrimSpace(m[1])
			action.Params["command"] = "cat > " + filename
			action.Params["stdin"] = llmOutput
		}
	} else if strings.Contains(command, "cat >") {
		action.Params["stdin"] = llmOutput
	}
}

func (h *Handler) buildResponse(planned []*convo.Action, executed []ExecutedAction, contextUpdates map[string]any) *Response {
	successCount := 0
	for _, a := range executed {
		if a.Success {
			successCount++
		}
	}
	executedCount := len(executed)
	plannedCount := len(planned)

	var message, respType string
	switch {
	case successCount == 0:
		firstErr := "Unknown error"
		if executedCount > 0 && executed[0].Error != "" {
			firstErr = executed[0].Error
		}
		message = "Failed to execute actions: " + truncateDisplay(firstErr, 300)
		respType = TypeError

	case successCount < executedCount:
		message = fmt.Sprintf("Partially completed: %d/%d actions succeeded.", successCount, executedCount)
		respType = TypePartialSuccess

	case executedCount < plannedCount:
		message = fmt.Sprintf("Completed %d action(s). Waiting for remaining actions...", successCount)
		respType = TypePartialSuccess

	default:
		if executedCount == 1 && executed[0].ActionType == convo.ActionLLMGenerate {
			message, _ = executed[0].Details["content"].(string)
			if message == "" {
				message, _ = h.session.GetVariable(convo.VarLastGeneratedText, "Response generated successfully.").(string)
			}
		} else if executedCount == 1 {
			message = truncateDisplay(executed[0].Description, 300) + " completed successfully."
		} else {
			message = fmt.Sprintf("Completed %d actions successfully.", executedCount)
		}
		respType = TypeSuccess
	}

	if executed == nil {
		executed = []ExecutedAction{}
	}
	return &Response{
		Type:           respType,
		Message:        message,
		Actions:        executed,
		ContextUpdates: contextUpdates,
	}
}

// truncateDisplay caps s to width terminal columns without cutting a
// multi-byte rune in half.
func truncateDisplay(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
