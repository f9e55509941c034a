package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/neuralux/convoengine/internal/config"
	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/convotrace"
	"github.com/neuralux/convoengine/internal/handler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine as a bus-connected daemon",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// processRequest is the request shape on conversation.process.
type processRequest struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id,omitempty"`
	Text        string `json:"text"`
	AutoApprove bool   `json:"auto_approve,omitempty"`
}

// approveRequest is the request shape on conversation.approve.
type approveRequest struct {
	SessionID       string `json:"session_id"`
	PendingID       string `json:"pending_id"`
	ApprovedIndices []int  `json:"approved_indices,omitempty"`
}

type historyRequest struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// daemon serves conversation endpoints over the bus, one Handler per
// session.
type daemon struct {
	rt *appRuntime

	mu       sync.Mutex
	handlers map[string]*handler.Handler
	pending  map[string][]*convo.Action
}

func runServe() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convod: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	if rt.cfg.Telemetry.Enabled && rt.cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := convotrace.Setup(ctx, rt.cfg.Telemetry.OTLPEndpoint, rt.cfg.Telemetry.Protocol, "convod")
		if err != nil {
			rt.log.Warn("telemetry_setup_failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	d := &daemon{
		rt:       rt,
		handlers: map[string]*handler.Handler{},
		pending:  map[string][]*convo.Action{},
	}

	endpoints := []struct {
		subject string
		fn      func(context.Context, json.RawMessage) (any, error)
	}{
		{"conversation.process", d.handleProcess},
		{"conversation.approve", d.handleApprove},
		{"conversation.history", d.handleHistory},
		{"conversation.reset", d.handleReset},
	}
	for _, ep := range endpoints {
		unsub, err := rt.bus.ReplyHandler(ctx, ep.subject, "convod", ep.fn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "convod: registering %s: %v\n", ep.subject, err)
			os.Exit(1)
		}
		defer unsub()
	}

	go d.watchConfig(ctx)

	rt.log.Info("convod_serving",
		"bus_url", rt.cfg.Bus.URL,
		"sessions_backend", rt.cfg.Sessions.Backend,
	)
	<-ctx.Done()
	rt.log.Info("convod_shutting_down")
}

func (d *daemon) watchConfig(ctx context.Context) {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(ctx, path, d.rt.log, func(cfg *config.Config) {
		d.rt.orch.ShellTimeout = cfg.ShellTimeout()
		d.rt.cfg.Shell = cfg.Shell
		d.rt.cfg.Search = cfg.Search
	})
	if err != nil {
		d.rt.log.Debug("config_watch_unavailable", "error", err)
	}
}

func (d *daemon) sessionHandler(ctx context.Context, sessionID, userID string) (*handler.Handler, error) {
	if sessionID == "" {
		sessionID = convo.DefaultSessionID("")
	}
	if userID == "" {
		userID = sessionID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.handlers[sessionID]; ok {
		return h, nil
	}
	h, err := handler.New(ctx, d.rt.bus, d.rt.store, d.rt.plan, d.rt.orch, sessionID, userID, d.rt.log)
	if err != nil {
		return nil, err
	}
	d.handlers[sessionID] = h
	return h, nil
}

func (d *daemon) handleProcess(ctx context.Context, raw json.RawMessage) (any, error) {
	var req processRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Text == "" {
		return nil, fmt.Errorf("missing text")
	}

	h, err := d.sessionHandler(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	resp := h.ProcessMessage(ctx, req.Text, req.AutoApprove)

	out := map[string]any{
		"type":            resp.Type,
		"message":         resp.Message,
		"actions":         resp.Actions,
		"context_updates": resp.ContextUpdates,
	}
	if resp.Type == handler.TypeNeedsApproval {
		id := uuid.NewString()
		d.mu.Lock()
		d.pending[h.SessionID+"/"+id] = resp.PendingActions
		d.mu.Unlock()
		out["pending_id"] = id
	}
	return out, nil
}

func (d *daemon) handleApprove(ctx context.Context, raw json.RawMessage) (any, error) {
	var req approveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	h, err := d.sessionHandler(ctx, req.SessionID, "")
	if err != nil {
		return nil, err
	}

	key := h.SessionID + "/" + req.PendingID
	d.mu.Lock()
	actions, ok := d.pending[key]
	delete(d.pending, key)
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown pending_id %q", req.PendingID)
	}

	return h.ApproveAndExecute(ctx, actions, req.ApprovedIndices), nil
}

func (d *daemon) handleHistory(ctx context.Context, raw json.RawMessage) (any, error) {
	var req historyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	h, err := d.sessionHandler(ctx, req.SessionID, "")
	if err != nil {
		return nil, err
	}
	return map[string]any{"history": h.History(req.Limit)}, nil
}

func (d *daemon) handleReset(ctx context.Context, raw json.RawMessage) (any, error) {
	var req resetRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	h, err := d.sessionHandler(ctx, req.SessionID, "")
	if err != nil {
		return nil, err
	}
	h.Reset(ctx)
	return map[string]any{"ok": true}, nil
}
