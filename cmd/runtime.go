package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/config"
	"github.com/neuralux/convoengine/internal/orchestrator"
	"github.com/neuralux/convoengine/internal/planner"
	"github.com/neuralux/convoengine/internal/store"
	filestore "github.com/neuralux/convoengine/internal/store/file"
	pgstore "github.com/neuralux/convoengine/internal/store/pg"
	sqlitestore "github.com/neuralux/convoengine/internal/store/sqlite"
	"github.com/neuralux/convoengine/internal/websearch"
)

// appRuntime bundles the wired components every subcommand needs.
type appRuntime struct {
	cfg   *config.Config
	log   *slog.Logger
	bus   bus.Adapter
	store store.SessionStore
	plan  *planner.Planner
	orch  *orchestrator.Orchestrator

	cleanup []func()
}

func (r *appRuntime) close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

// newRuntime loads config, connects the bus, and opens the configured
// session store backend.
func newRuntime(ctx context.Context) (*appRuntime, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := config.NewLogger(cfg.Log)

	adapter := bus.NewNATSAdapter(bus.Config{
		URL:                  cfg.Bus.URL,
		MaxReconnectAttempts: cfg.Bus.MaxReconnectAttempts,
		ReconnectWait:        time.Duration(cfg.Bus.ReconnectWaitSecs) * time.Second,
		ConnectTimeout:       time.Duration(cfg.Bus.ConnectTimeoutSecs) * time.Second,
	}, log)
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}

	r := &appRuntime{cfg: cfg, log: log, bus: adapter}
	r.cleanup = append(r.cleanup, func() { _ = adapter.Disconnect() })

	st, err := openStore(cfg, log)
	if err != nil {
		r.close()
		return nil, err
	}
	r.store = st

	search := websearch.New(websearch.Config{
		BraveAPIKey: cfg.Search.BraveAPIKey,
		DDGEnabled:  cfg.Search.DDGEnabled,
	}, log)

	r.plan = planner.New(adapter, log)
	r.orch = orchestrator.New(adapter, search, log)
	r.orch.ShellTimeout = cfg.ShellTimeout()
	return r, nil
}

func openStore(cfg *config.Config, log *slog.Logger) (store.SessionStore, error) {
	switch cfg.Sessions.Backend {
	case "", "file":
		return filestore.New(cfg.DataDir(), cfg.TTL(), log)

	case "sqlite":
		path := cfg.Sessions.SQLitePath
		if path == "" {
			path = cfg.DataDir() + "/sessions.db"
		}
		return sqlitestore.Open(path, cfg.TTL(), log)

	case "postgres":
		dsn := cfg.Sessions.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("sessions.backend is postgres but NLX_POSTGRES_DSN is not set")
		}
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return pgstore.New(pool, cfg.TTL(), log), nil
	}
	return nil, fmt.Errorf("unknown sessions backend %q", cfg.Sessions.Backend)
}
