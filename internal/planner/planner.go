// Package planner turns an utterance and session context into an
// ordered list of actions and a short human explanation, via a
// priority cascade: quick reference patterns, the music and
// informational fast paths, reference resolution, LLM planning,
// sanitization with a deterministic fallback, and parameter
// enrichment.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/convo"
)

// Planner plans actions for an utterance against session context. It is
// the only component permitted to call llm_generate recursively (via
// the bus, for planning purposes); it must never itself consume
// approval.
type Planner struct {
	Bus bus.Adapter
	Log *slog.Logger
}

// New constructs a Planner bound to a bus adapter.
func New(b bus.Adapter, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{Bus: b, Log: log}
}

// PlanActions runs the full cascade and returns the ordered action
// list plus a short explanation.
func (p *Planner) PlanActions(ctx context.Context, userInput string, session *convo.Session) ([]*convo.Action, string) {
	p.Log.Info("planning_actions", "input", userInput, "session_id", session.SessionID)

	if actions, explanation := p.tryQuickReferencePatterns(userInput, session); len(actions) > 0 {
		return actions, explanation
	}

	if actions, explanation, matched := p.tryMusicFastPath(userInput); matched {
		return actions, explanation
	}

	lowerIntent := strings.ToLower(userInput)
	if isInformationalQuery(lowerIntent) {
		return p.informationalFastPath(userInput)
	}

	var resolvedValues map[string]any
	resolvedInput := userInput
	if convo.NeedsResolution(userInput) {
		resolvedInput, resolvedValues = convo.Resolve(userInput, session)
		p.Log.Debug("resolved_references", "resolved_values", resolvedValues)
	}

	actions, explanation := p.llmPlanActions(ctx, userInput, resolvedInput, resolvedValues, session)

	actionsDropped := false
	if len(actions) > 0 {
		var dropped bool
		actions, dropped = sanitizePlannedActions(userInput, resolvedInput, resolvedValues, session, actions)
		actionsDropped = dropped
	}

	if actionsDropped && len(actions) == 0 {
		actions, explanation = fallbackPlanActions(userInput, resolvedValues, session)
	}

	if actionsDropped && len(actions) > 0 {
		explanation = reconcileExplanation(explanation, actions)
	}

	for _, action := range actions {
		enrichActionParams(action, resolvedValues, session)
		if action.Kind == convo.ActionCommandExecute {
			fixApplicationOpeningCommand(action)
		}
		if action.Kind == convo.ActionMusicGenerate && action.ParamString("prompt") == "" {
			action.Params["prompt"] = extractMusicPrompt(userInput)
		}
	}

	p.Log.Info("planned_actions", "count", len(actions), "explanation", explanation)
	return actions, explanation
}

func reconcileExplanation(explanation string, actions []*convo.Action) string {
	lower := strings.ToLower(explanation)
	hasMusic := false
	hasImage := false
	for _, a := range actions {
		if a.Kind == convo.ActionMusicGenerate || a.Kind == convo.ActionMusicSave {
			hasMusic = true
		}
		if a.Kind == convo.ActionImageGenerate || a.Kind == convo.ActionImageSave {
			hasImage = true
		}
	}
	if strings.Contains(lower, "music") && !hasMusic {
		return "Processing your request"
	}
	if !strings.Contains(lower, "image") && hasImage {
		if explanation == "" {
			return "Processing your request"
		}
	}
	return explanation
}
