// Package pg implements store.SessionStore backed by Postgres via
// pgx/v5, for operators who want a queryable, centrally-backed-up
// session store instead of the file backend. Schema is managed with
// golang-migrate (see migrations/).
package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/store"
	"github.com/neuralux/convoengine/internal/store/settingsfile"
)

// Store implements store.SessionStore on top of a pgx connection
// pool. A small in-memory cache avoids a round trip on every message
// within one live conversation.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	log  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*convo.Session
}

// New wraps an existing pgx pool. Callers are responsible for running
// the migrations/ directory against the target database first (see
// internal/store/pg/migrations).
func New(pool *pgxpool.Pool, ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = store.DefaultTTL * time.Second
	}
	return &Store{pool: pool, ttl: ttl, log: log, cache: make(map[string]*convo.Session)}
}

func (s *Store) Load(ctx context.Context, sessionID string) (*convo.Session, error) {
	s.mu.RLock()
	if cached, ok := s.cache[sessionID]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM convo_sessions WHERE session_id = $1 AND expires_at > now()`,
		sessionID,
	).Scan(&payload)
	if err != nil {
		// Not found, expired, or transport error: fall back to a fresh
		// session per the Session Store's failure semantics.
		return convo.NewSession(sessionID, sessionID), nil
	}

	var session convo.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		s.log.Warn("pg_session_payload_corrupt", "session_id", sessionID, "error", err)
		return convo.NewSession(sessionID, sessionID), nil
	}

	s.mu.Lock()
	s.cache[sessionID] = &session
	s.mu.Unlock()
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session *convo.Session) error {
	session.UpdatedAt = convo.NowMillis()
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", pgPersistenceError{}, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO convo_sessions (session_id, user_id, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, now() + $4::interval, now())
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		session.SessionID, session.UserID, payload, s.ttl.String(),
	)
	if err != nil {
		s.log.Error("pg_session_save_failed", "session_id", session.SessionID, "error", err)
		return fmt.Errorf("%w: %v", pgPersistenceError{}, err)
	}

	s.mu.Lock()
	s.cache[session.SessionID] = session
	s.mu.Unlock()
	return nil
}

func (s *Store) Reset(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM convo_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		s.log.Warn("pg_session_reset_failed", "session_id", sessionID, "error", err)
	}
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *Store) Archive(ctx context.Context, userID string, snapshot convo.ArchivedConversation, maxKeep int) error {
	if maxKeep <= 0 {
		maxKeep = store.DefaultMaxArchives
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal archive: %v", pgPersistenceError{}, err)
	}

	id := uuid.Must(uuid.NewV7())
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO convo_archives (id, user_id, archive_id, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		id, userID, snapshot.ID, snapshot.UpdatedAt, payload,
	); err != nil {
		s.log.Error("pg_archive_save_failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", pgPersistenceError{}, err)
	}

	// Trim to the newest maxKeep rows for this user, mirroring the file
	// backend's head-trim behavior (and the original's Redis LTRIM).
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM convo_archives WHERE id IN (
			SELECT id FROM convo_archives WHERE user_id = $1
			ORDER BY updated_at DESC OFFSET $2
		)`, userID, maxKeep); err != nil {
		s.log.Warn("pg_archive_trim_failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *Store) ListArchives(ctx context.Context, userID string, start, count int) ([]convo.ArchivedConversation, error) {
	if count <= 0 {
		count = store.DefaultMaxArchives
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM convo_archives WHERE user_id = $1
		ORDER BY updated_at DESC OFFSET $2 LIMIT $3`, userID, start, count)
	if err != nil {
		s.log.Warn("pg_archive_list_failed", "user_id", userID, "error", err)
		return []convo.ArchivedConversation{}, nil
	}
	defer rows.Close()

	var out []convo.ArchivedConversation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var a convo.ArchivedConversation
		if err := json.Unmarshal(payload, &a); err == nil {
			out = append(out, a)
		}
	}
	if out == nil {
		out = []convo.ArchivedConversation{}
	}
	return out, nil
}

func (s *Store) GetArchive(ctx context.Context, userID string, id int64) (*convo.ArchivedConversation, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM convo_archives WHERE user_id = $1 AND archive_id = $2`,
		userID, id,
	).Scan(&payload)
	if err != nil {
		return nil, nil
	}
	var a convo.ArchivedConversation
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, nil
	}
	return &a, nil
}

// LoadSettings/SaveSettings remain file-based even under the Postgres
// backend: the settings blob is a small local operator preference
// file, not per-user conversational state.
func (s *Store) LoadSettings(ctx context.Context, path string) (map[string]any, error) {
	return settingsfile.Load(path)
}

func (s *Store) SaveSettings(ctx context.Context, path string, data map[string]any) error {
	settingsfile.Save(s.log, path, data)
	return nil
}

type pgPersistenceError struct{}

func (pgPersistenceError) Error() string { return string(convo.ErrPersistenceError) }

var _ store.SessionStore = (*Store)(nil)
