// Package handler coordinates one conversational exchange: append the
// user turn, plan, gate on approval, execute with output chaining, join
// asynchronous results, and persist the session.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/convotrace"
	"github.com/neuralux/convoengine/internal/orchestrator"
	"github.com/neuralux/convoengine/internal/planner"
	"github.com/neuralux/convoengine/internal/store"
)

// Response type values.
const (
	TypeSuccess        = "success"
	TypeNeedsApproval  = "needs_approval"
	TypePartialSuccess = "partial_success"
	TypeError          = "error"
	TypeCancelled      = "cancelled"
)

// DefaultMusicWait bounds the asynchronous music-result join.
const DefaultMusicWait = 300 * time.Second

// ExecutedAction is the per-action entry in a Response.
type ExecutedAction struct {
	ActionType  convo.ActionKind `json:"action_type"`
	Description string           `json:"description"`
	Success     bool             `json:"success"`
	Details     map[string]any   `json:"details,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Response is the result of one process/approve cycle.
type Response struct {
	Type           string           `json:"type"`
	Message        string           `json:"message"`
	Actions        []ExecutedAction `json:"actions"`
	ContextUpdates map[string]any   `json:"context_updates,omitempty"`

	// PendingActions is retained when Type is needs_approval, to be
	// handed back to ApproveAndExecute.
	PendingActions []*convo.Action `json:"-"`
}

// Handler owns one session. ProcessMessage and ApproveAndExecute are
// serialized per Handler; distinct sessions run concurrently on their
// own Handlers.
type Handler struct {
	SessionID string
	UserID    string

	bus       bus.Adapter
	store     store.SessionStore
	planner   *planner.Planner
	orch      *orchestrator.Orchestrator
	log       *slog.Logger
	musicWait time.Duration

	mu      sync.Mutex
	session *convo.Session
}

// New loads (or initializes) the session and returns a Handler bound to
// it.
func New(ctx context.Context, b bus.Adapter, st store.SessionStore, p *planner.Planner, o *orchestrator.Orchestrator, sessionID, userID string, log *slog.Logger) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := st.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID == "" || session.UserID == sessionID {
		session.UserID = userID
	}

	log.Info("conversation_handler_initialized",
		"session_id", sessionID,
		"user_id", userID,
		"turns", len(session.Turns),
	)
	return &Handler{
		SessionID: sessionID,
		UserID:    userID,
		bus:       b,
		store:     st,
		planner:   p,
		orch:      o,
		log:       log,
		musicWait: DefaultMusicWait,
		session:   session,
	}, nil
}

// SetMusicWait overrides the asynchronous music-result join deadline
// (used by tests).
func (h *Handler) SetMusicWait(d time.Duration) { h.musicWait = d }

// Session returns the live session owned by this handler.
func (h *Handler) Session() *convo.Session { return h.session }

// ProcessMessage plans and, approval permitting, executes actions for
// one user utterance.
func (h *Handler) ProcessMessage(ctx context.Context, userInput string, autoApprove bool) *Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.Info("processing_message", "input", truncateDisplay(userInput, 100))

	h.session.AddTurn(convo.Turn{
		Role:      convo.RoleUser,
		Content:   userInput,
		Timestamp: convo.NowMillis(),
	})

	actions, explanation := h.planner.PlanActions(ctx, userInput, h.session)

	if len(actions) == 0 {
		msg := explanation
		if msg == "" {
			msg = "I'm not sure how to help with that."
		}
		h.session.AddTurn(convo.Turn{Role: convo.RoleAssistant, Content: msg, Timestamp: convo.NowMillis()})
		h.persist(ctx)
		return &Response{Type: TypeSuccess, Message: msg, Actions: []ExecutedAction{}, ContextUpdates: map[string]any{}}
	}

	if !autoApprove {
		for _, a := range actions {
			if a.NeedsApproval {
				return &Response{
					Type:           TypeNeedsApproval,
					Message:        explanation,
					Actions:        describeActions(actions),
					PendingActions: actions,
				}
			}
		}
	}

	return h.executeCycle(ctx, actions, explanation)
}

// ApproveAndExecute runs the approved subset of previously planned
// actions. approvedIndices == nil approves all of them.
func (h *Handler) ApproveAndExecute(ctx context.Context, pending []*convo.Action, approvedIndices []int) *Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	var actions []*convo.Action
	if approvedIndices == nil {
		actions = pending
	} else {
		for _, i := range approvedIndices {
			if i >= 0 && i < len(pending) {
				actions = append(actions, pending[i])
			}
		}
	}
	if len(actions) == 0 {
		return &Response{
			Type:    TypeCancelled,
			Message: "No actions were approved for execution.",
			Actions: []ExecutedAction{},
		}
	}
	for _, a := range actions {
		a.Status = convo.StatusApproved
	}

	explanation := fmt.Sprintf("Executing %d approved action(s)", len(actions))
	return h.executeCycle(ctx, actions, explanation)
}

// executeCycle opens the per-cycle conversation subscription, executes
// the plan, joins any pending asynchronous music result, and returns
// the merged response.
func (h *Handler) executeCycle(ctx context.Context, actions []*convo.Action, explanation string) *Response {
	ctx, span := convotrace.StartTurn(ctx, h.SessionID, len(actions))
	defer span.End()

	inbox, unsubscribe := h.subscribeConversation(ctx)
	if unsubscribe != nil {
		defer unsubscribe()
	}

	resp := h.executeActions(ctx, actions, explanation)

	if hasKind(actions, convo.ActionMusicGenerate) {
		h.awaitMusicResult(ctx, inbox, actions, resp)
		h.persist(ctx)
	}
	return resp
}

func (h *Handler) persist(ctx context.Context) {
	if err := h.store.Save(ctx, h.session); err != nil {
		h.log.Warn("session_persist_failed", "session_id", h.SessionID, "error", err)
	}
}

func hasKind(actions []*convo.Action, kind convo.ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func describeActions(actions []*convo.Action) []ExecutedAction {
	out := make([]ExecutedAction, 0, len(actions))
	for _, a := range actions {
		out = append(out, ExecutedAction{
			ActionType:  a.Kind,
			Description: a.Description,
		})
	}
	return out
}
