// Package file implements store.SessionStore with one JSON file per
// session, written atomically (temp file + rename), plus a bounded
// per-user archive file trimmed newest-first.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/store"
	"github.com/neuralux/convoengine/internal/store/settingsfile"
)

// Store is a file-backed store.SessionStore rooted at a data directory.
type Store struct {
	mu  sync.Mutex
	dir string
	ttl time.Duration
	log *slog.Logger
}

// New creates a file-backed Store rooted at dir, creating it if needed.
// ttl <= 0 uses store.DefaultTTL.
func New(dir string, ttl time.Duration, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = store.DefaultTTL * time.Second
	}
	if err := os.MkdirAll(filepath.Join(dir, "sessions"), 0o755); err != nil {
		return nil, fmt.Errorf("file store: creating sessions dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "archives"), 0o755); err != nil {
		return nil, fmt.Errorf("file store: creating archives dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, log: log}, nil
}

type sessionEnvelope struct {
	ExpiresAt int64          `json:"expires_at"`
	Session   *convo.Session `json:"session"`
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, "sessions", sanitizeFilename(sessionID)+".json")
}

func (s *Store) archivePath(userID string) string {
	return filepath.Join(s.dir, "archives", sanitizeFilename(userID)+".json")
}

// sanitizeFilename replaces path separators and colons so a session
// key like "alice@host:suffix" maps to a single safe filename.
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}

func (s *Store) Load(ctx context.Context, sessionID string) (*convo.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("session_load_failed", "session_id", sessionID, "error", err)
		}
		return convo.NewSession(sessionID, sessionID), nil
	}

	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Session == nil {
		s.log.Warn("session_payload_corrupt", "session_id", sessionID, "error", err)
		return convo.NewSession(sessionID, sessionID), nil
	}
	if env.ExpiresAt > 0 && time.Now().Unix() > env.ExpiresAt {
		s.log.Info("session_expired", "session_id", sessionID)
		return convo.NewSession(sessionID, sessionID), nil
	}
	return env.Session, nil
}

func (s *Store) Save(ctx context.Context, session *convo.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = convo.NowMillis()
	env := sessionEnvelope{
		ExpiresAt: time.Now().Add(s.ttl).Unix(),
		Session:   session,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", convoPersistenceError{}, err)
	}
	if err := atomicWrite(filepath.Join(s.dir, "sessions"), s.sessionPath(session.SessionID), data); err != nil {
		s.log.Error("session_save_failed", "session_id", session.SessionID, "error", err)
		return fmt.Errorf("%w: %v", convoPersistenceError{}, err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.sessionPath(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("session_reset_failed", "session_id", sessionID, "error", err)
		return nil
	}
	return nil
}

func (s *Store) loadArchives(userID string) []convo.ArchivedConversation {
	raw, err := os.ReadFile(s.archivePath(userID))
	if err != nil {
		return nil
	}
	var archives []convo.ArchivedConversation
	if err := json.Unmarshal(raw, &archives); err != nil {
		s.log.Warn("archive_payload_corrupt", "user_id", userID, "error", err)
		return nil
	}
	return archives
}

func (s *Store) Archive(ctx context.Context, userID string, snapshot convo.ArchivedConversation, maxKeep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxKeep <= 0 {
		maxKeep = store.DefaultMaxArchives
	}
	archives := s.loadArchives(userID)
	archives = append([]convo.ArchivedConversation{snapshot}, archives...)
	if len(archives) > maxKeep {
		archives = archives[:maxKeep]
	}
	data, err := json.MarshalIndent(archives, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal archives: %v", convoPersistenceError{}, err)
	}
	if err := atomicWrite(filepath.Join(s.dir, "archives"), s.archivePath(userID), data); err != nil {
		s.log.Error("archive_save_failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", convoPersistenceError{}, err)
	}
	return nil
}

func (s *Store) ListArchives(ctx context.Context, userID string, start, count int) ([]convo.ArchivedConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archives := s.loadArchives(userID)
	sort.SliceStable(archives, func(i, j int) bool { return archives[i].UpdatedAt > archives[j].UpdatedAt })
	if start < 0 {
		start = 0
	}
	if start >= len(archives) {
		return []convo.ArchivedConversation{}, nil
	}
	end := start + count
	if count <= 0 || end > len(archives) {
		end = len(archives)
	}
	return archives[start:end], nil
}

func (s *Store) GetArchive(ctx context.Context, userID string, id int64) (*convo.ArchivedConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.loadArchives(userID) {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) LoadSettings(ctx context.Context, path string) (map[string]any, error) {
	return settingsfile.Load(path)
}

func (s *Store) SaveSettings(ctx context.Context, path string, data map[string]any) error {
	settingsfile.Save(s.log, path, data)
	return nil
}

// atomicWrite writes data to path via a temp file in dir followed by a
// rename.
func atomicWrite(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

type convoPersistenceError struct{}

func (convoPersistenceError) Error() string { return string(convo.ErrPersistenceError) }

var _ store.SessionStore = (*Store)(nil)
