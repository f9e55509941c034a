package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/pkg/protocol"
)

// subscribeConversation opens the per-cycle subscription on the
// session's conversation subject. The returned channel receives at most
// one music_result; other message types on the stream are ignored.
func (h *Handler) subscribeConversation(ctx context.Context) (<-chan protocol.MusicResultEvent, func()) {
	inbox := make(chan protocol.MusicResultEvent, 1)

	unsubscribe, err := h.bus.Subscribe(ctx, protocol.ConversationSubject(h.SessionID), "", func(_ context.Context, msg bus.Message) error {
		var event protocol.MusicResultEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		if event.Type != protocol.ConversationEventMusicResult {
			return nil
		}
		select {
		case inbox <- event:
		default:
		}
		return nil
	})
	if err != nil {
		h.log.Warn("conversation_subscribe_failed", "session_id", h.SessionID, "error", err)
		return inbox, nil
	}
	return inbox, func() {
		if err := unsubscribe(); err != nil {
			h.log.Debug("conversation_unsubscribe_failed", "error", err)
		}
	}
}

// awaitMusicResult joins the asynchronous music generation: wait for
// the music_result (bounded), record the delivered file, run a deferred
// music_save against it, and fold the outcome back into resp.
func (h *Handler) awaitMusicResult(ctx context.Context, inbox <-chan protocol.MusicResultEvent, actions []*convo.Action, resp *Response) {
	var event protocol.MusicResultEvent
	select {
	case event = <-inbox:
	case <-time.After(h.musicWait):
		h.log.Warn("music_result_timeout", "session_id", h.SessionID)
		return
	case <-ctx.Done():
		return
	}

	if event.FilePath == "" {
		return
	}
	h.session.SetVariable(convo.VarLastGeneratedMusic, event.FilePath)

	for i := range resp.Actions {
		if resp.Actions[i].ActionType == convo.ActionMusicGenerate {
			if resp.Actions[i].Details == nil {
				resp.Actions[i].Details = map[string]any{}
			}
			resp.Actions[i].Details["file_path"] = event.FilePath
			resp.Actions[i].Details["status"] = "completed"
			resp.Actions[i].Success = true
		}
	}

	saveAction := findKind(actions, convo.ActionMusicSave)
	if saveAction == nil {
		h.recomputeSummary(actions, resp)
		return
	}

	src := saveAction.ParamString("src_path")
	if strings.Contains(src, "{{") || src == "" {
		saveAction.Params["src_path"] = event.FilePath
	}

	result := h.orch.ExecuteAction(ctx, saveAction, h.session)

	merged := false
	for i := range resp.Actions {
		if resp.Actions[i].ActionType == convo.ActionMusicSave {
			resp.Actions[i].Success = result.Success
			resp.Actions[i].Details = result.Details
			resp.Actions[i].Error = result.Error
			merged = true
			break
		}
	}
	if !merged {
		resp.Actions = append(resp.Actions, ExecutedAction{
			ActionType:  saveAction.Kind,
			Description: saveAction.Description,
			Success:     result.Success,
			Details:     result.Details,
			Error:       result.Error,
		})
	}

	if resp.ContextUpdates == nil {
		resp.ContextUpdates = map[string]any{}
	}
	for k, v := range h.session.Variables {
		resp.ContextUpdates[k] = v
	}

	h.recomputeSummary(actions, resp)
}

// recomputeSummary rebuilds the response type and message after the
// asynchronous continuation changed the executed-action set.
func (h *Handler) recomputeSummary(actions []*convo.Action, resp *Response) {
	successCount := 0
	for _, a := range resp.Actions {
		if a.Success {
			successCount++
		}
	}
	switch {
	case successCount == 0 && len(resp.Actions) > 0:
		resp.Type = TypeError
		resp.Message = "Failed to execute actions: " + truncateDisplay(resp.Actions[0].Error, 300)
	case successCount < len(resp.Actions):
		resp.Type = TypePartialSuccess
		resp.Message = fmt.Sprintf("Partially completed: %d/%d actions succeeded.", successCount, len(resp.Actions))
	case len(resp.Actions) < len(actions):
		resp.Type = TypePartialSuccess
		resp.Message = fmt.Sprintf("Completed %d action(s). Waiting for remaining actions...", successCount)
	default:
		resp.Type = TypeSuccess
		if len(resp.Actions) == 1 {
			resp.Message = truncateDisplay(resp.Actions[0].Description, 300) + " completed successfully."
		} else {
			resp.Message = fmt.Sprintf("All %d actions completed successfully.", len(resp.Actions))
		}
	}
}

func findKind(actions []*convo.Action, kind convo.ActionKind) *convo.Action {
	for _, a := range actions {
		if a.Kind == kind {
			return a
		}
	}
	return nil
}
