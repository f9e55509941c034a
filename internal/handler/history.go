package handler

import (
	"context"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/store"
)

// HistoryEntry is one turn in the shape the calling shell renders.
type HistoryEntry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp int64          `json:"timestamp"`
	Action    map[string]any `json:"action,omitempty"`
}

// History returns the last limit turns (all turns when limit <= 0).
func (h *Handler) History(limit int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.session.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		entry := HistoryEntry{
			Role:      string(t.Role),
			Content:   t.Content,
			Timestamp: t.Timestamp,
		}
		if t.ActionResult != nil {
			entry.Action = map[string]any{
				"type":    t.ActionResult.Kind,
				"success": t.ActionResult.Success,
				"details": t.ActionResult.Details,
			}
		}
		out = append(out, entry)
	}
	return out
}

// Reset archives the current session, deletes the live copy, and starts
// fresh.
func (h *Handler) Reset(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.session.Turns) > 0 {
		snapshot := convo.Archive(h.session)
		if err := h.store.Archive(ctx, h.UserID, snapshot, store.DefaultMaxArchives); err != nil {
			h.log.Warn("session_archive_failed", "user_id", h.UserID, "error", err)
		}
	}
	if err := h.store.Reset(ctx, h.SessionID); err != nil {
		h.log.Warn("session_reset_failed", "session_id", h.SessionID, "error", err)
	}

	session, err := h.store.Load(ctx, h.SessionID)
	if err != nil || session == nil {
		session = convo.NewSession(h.SessionID, h.UserID)
	}
	session.UserID = h.UserID
	h.session = session
	h.log.Info("conversation_reset", "session_id", h.SessionID)
}

// ContextSummary reports the session's live state for /context-style
// introspection.
func (h *Handler) ContextSummary() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	variables := make(map[string]any, len(h.session.Variables))
	for k, v := range h.session.Variables {
		variables[k] = v
	}
	return map[string]any{
		"session_id":        h.session.SessionID,
		"turn_count":        len(h.session.Turns),
		"variables":         variables,
		"working_directory": h.session.WorkingDirectory,
		"last_updated":      h.session.UpdatedAt,
	}
}
