// Package sqlite implements store.SessionStore on top of the pure-Go
// modernc.org/sqlite driver — an embeddable alternative to the Postgres
// backend for operators who want queryable archive pagination (plain
// SQL OFFSET/LIMIT over ListArchives) without running a database
// server. Schema is created in-process on Open; there is no
// multi-process writer concern since the file backend already covers
// the zero-dependency case and this backend is meant for a single
// local daemon instance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/store"
	"github.com/neuralux/convoengine/internal/store/settingsfile"
)

const schema = `
CREATE TABLE IF NOT EXISTS convo_sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS convo_archives (
	rowid_key INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	archive_id INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS convo_archives_user_idx ON convo_archives(user_id, updated_at DESC);
`

// Store implements store.SessionStore on a local SQLite file.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger
}

// Open opens (creating if necessary) a SQLite database at path.
func Open(path string, ttl time.Duration, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = store.DefaultTTL * time.Second
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: schema: %w", err)
	}
	return &Store{db: db, ttl: ttl, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context, sessionID string) (*convo.Session, error) {
	var payload string
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM convo_sessions WHERE session_id = ?`, sessionID)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		return convo.NewSession(sessionID, sessionID), nil
	}
	if time.Now().Unix() > expiresAt {
		return convo.NewSession(sessionID, sessionID), nil
	}
	var session convo.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		s.log.Warn("sqlite_session_payload_corrupt", "session_id", sessionID, "error", err)
		return convo.NewSession(sessionID, sessionID), nil
	}
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session *convo.Session) error {
	session.UpdatedAt = convo.NowMillis()
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", sqlitePersistenceError{}, err)
	}
	expiresAt := time.Now().Add(s.ttl).Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO convo_sessions (session_id, user_id, payload, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET payload=excluded.payload, expires_at=excluded.expires_at, updated_at=excluded.updated_at`,
		session.SessionID, session.UserID, string(payload), expiresAt, time.Now().Unix(),
	)
	if err != nil {
		s.log.Error("sqlite_session_save_failed", "session_id", session.SessionID, "error", err)
		return fmt.Errorf("%w: %v", sqlitePersistenceError{}, err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM convo_sessions WHERE session_id = ?`, sessionID); err != nil {
		s.log.Warn("sqlite_session_reset_failed", "session_id", sessionID, "error", err)
	}
	return nil
}

func (s *Store) Archive(ctx context.Context, userID string, snapshot convo.ArchivedConversation, maxKeep int) error {
	if maxKeep <= 0 {
		maxKeep = store.DefaultMaxArchives
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal archive: %v", sqlitePersistenceError{}, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO convo_archives (user_id, archive_id, updated_at, payload) VALUES (?, ?, ?, ?)`,
		userID, snapshot.ID, snapshot.UpdatedAt, string(payload)); err != nil {
		s.log.Error("sqlite_archive_save_failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", sqlitePersistenceError{}, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM convo_archives WHERE rowid_key IN (
			SELECT rowid_key FROM convo_archives WHERE user_id = ?
			ORDER BY updated_at DESC LIMIT -1 OFFSET ?)`, userID, maxKeep); err != nil {
		s.log.Warn("sqlite_archive_trim_failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *Store) ListArchives(ctx context.Context, userID string, start, count int) ([]convo.ArchivedConversation, error) {
	if count <= 0 {
		count = store.DefaultMaxArchives
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM convo_archives WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`, userID, count, start)
	if err != nil {
		s.log.Warn("sqlite_archive_list_failed", "user_id", userID, "error", err)
		return []convo.ArchivedConversation{}, nil
	}
	defer rows.Close()

	out := []convo.ArchivedConversation{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var a convo.ArchivedConversation
		if err := json.Unmarshal([]byte(payload), &a); err == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetArchive(ctx context.Context, userID string, id int64) (*convo.ArchivedConversation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM convo_archives WHERE user_id = ? AND archive_id = ? ORDER BY updated_at DESC LIMIT 1`,
		userID, id,
	).Scan(&payload)
	if err != nil {
		return nil, nil
	}
	var a convo.ArchivedConversation
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) LoadSettings(ctx context.Context, path string) (map[string]any, error) {
	return settingsfile.Load(path)
}

func (s *Store) SaveSettings(ctx context.Context, path string, data map[string]any) error {
	settingsfile.Save(s.log, path, data)
	return nil
}

type sqlitePersistenceError struct{}

func (sqlitePersistenceError) Error() string { return string(convo.ErrPersistenceError) }

var _ store.SessionStore = (*Store)(nil)
