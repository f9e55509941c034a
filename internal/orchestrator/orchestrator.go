// Package orchestrator executes one planned action at a time against
// the bus and the local filesystem, recording the outcome and mutating
// session variables so later actions can reference earlier results.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/convotrace"
	"github.com/neuralux/convoengine/internal/websearch"
)

// Per-kind request deadlines.
const (
	llmTimeout      = 30 * time.Second
	imageGenTimeout = 60 * time.Second
	ocrTimeout      = 20 * time.Second
	docQueryTimeout = 10 * time.Second
	shellTimeout    = 30 * time.Second
	sysCmdTimeout   = 10 * time.Second
)

// Orchestrator dispatches actions by kind. Safe for concurrent use
// across sessions; callers serialize per session.
type Orchestrator struct {
	Bus    bus.Adapter
	Search *websearch.Client
	Log    *slog.Logger

	// ShellTimeout overrides the default command_execute deadline when
	// positive.
	ShellTimeout time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs an Orchestrator bound to a bus adapter and an
// in-process web search client.
func New(b bus.Adapter, search *websearch.Client, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		Bus:      b,
		Search:   search,
		Log:      log,
		limiters: map[string]*rate.Limiter{},
	}
}

type actionHandler func(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult

func (o *Orchestrator) dispatch(kind convo.ActionKind) actionHandler {
	switch kind {
	case convo.ActionLLMGenerate:
		return o.executeLLMGenerate
	case convo.ActionImageGenerate:
		return o.executeImageGenerate
	case convo.ActionImageSave:
		return o.executeImageSave
	case convo.ActionMusicGenerate:
		return o.executeMusicGenerate
	case convo.ActionMusicSave:
		return o.executeMusicSave
	case convo.ActionOCRCapture:
		return o.executeOCRCapture
	case convo.ActionDocumentQuery:
		return o.executeDocumentQuery
	case convo.ActionWebSearch:
		return o.executeWebSearch
	case convo.ActionCommandExecute:
		return o.executeCommand
	case convo.ActionSystemCommand:
		return o.executeSystemCommand
	}
	return nil
}

// ExecuteAction runs a single action to completion, updates its status
// and result, and applies the context-mutation rules on success. Errors
// never propagate as Go errors to the caller's turn; every failure is
// captured in the returned ActionResult.
func (o *Orchestrator) ExecuteAction(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	o.Log.Info("executing_action", "action_type", action.Kind, "params", action.Params)

	ctx, span := convotrace.StartAction(ctx, string(action.Kind))
	defer span.End()

	action.Status = convo.StatusExecuting
	start := time.Now()

	handler := o.dispatch(action.Kind)
	if handler == nil {
		result := convo.NewFailure(action.Kind, convo.ErrInvalidParam, convo.ErrUnknownActionKind.Error()+": "+string(action.Kind))
		action.Status = convo.StatusFailed
		action.Result = result
		return result
	}

	result := handler(ctx, action, session)

	if result.Success {
		action.Status = convo.StatusCompleted
		o.updateContextVariables(action, result, session)
	} else {
		action.Status = convo.StatusFailed
	}
	action.Result = result

	o.Log.Info("action_completed",
		"action_type", action.Kind,
		"success", result.Success,
		"duration", time.Since(start),
	)
	return result
}

// limiter returns the per-session shell rate limiter, roughly one
// command per second with a small burst.
func (o *Orchestrator) limiter(sessionID string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 3)
		o.limiters[sessionID] = l
	}
	return l
}

// busFailure classifies a bus.Request error into the result taxonomy.
func busFailure(kind convo.ActionKind, err error) *convo.ActionResult {
	var timeout *bus.ErrTimeout
	if errors.As(err, &timeout) {
		return convo.NewFailure(kind, convo.ErrTransportTimeout, err.Error())
	}
	var remote *bus.ErrRemote
	if errors.As(err, &remote) {
		return convo.NewFailure(kind, convo.ErrRemoteError, remote.Message)
	}
	return convo.NewFailure(kind, convo.ErrRemoteError, err.Error())
}
