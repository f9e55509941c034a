// Package store defines the session store contract: durable
// persistence of sessions and per-user archive lists with TTL, plus a
// small file-backed settings blob.
package store

import (
	"context"

	"github.com/neuralux/convoengine/internal/convo"
)

// DefaultTTL is the session TTL refresh applied on every Save.
const DefaultTTL = 24 * 60 * 60 // seconds

// DefaultMaxArchives bounds the per-user archive list.
const DefaultMaxArchives = 50

// SessionStore is the durable persistence boundary the Handler uses
// to load/save conversational state. Implementations must never panic
// or propagate transport errors: failures degrade to empty results and
// are logged.
type SessionStore interface {
	// Load returns the session for sessionID, or a freshly initialized
	// empty session if none exists or the stored payload is corrupt/
	// expired.
	Load(ctx context.Context, sessionID string) (*convo.Session, error)

	// Save atomically persists session, setting UpdatedAt and refreshing
	// its TTL. Never returns a transport error to the caller in a way
	// that aborts the turn; callers log and continue (ErrPersistenceError).
	Save(ctx context.Context, session *convo.Session) error

	// Reset deletes the live session. Callers archive first if history
	// should be preserved.
	Reset(ctx context.Context, sessionID string) error

	// Archive prepends a compact ArchivedConversation snapshot to the
	// user's bounded archive list, trimming to maxKeep (<=0 means
	// DefaultMaxArchives).
	Archive(ctx context.Context, userID string, snapshot convo.ArchivedConversation, maxKeep int) error

	// ListArchives returns a page of archived conversations for userID,
	// newest first.
	ListArchives(ctx context.Context, userID string, start, count int) ([]convo.ArchivedConversation, error)

	// GetArchive returns a single archived conversation by id, or nil if
	// not found.
	GetArchive(ctx context.Context, userID string, id int64) (*convo.ArchivedConversation, error)

	// LoadSettings reads the best-effort JSON settings blob at path.
	// Errors are swallowed; callers receive an empty map.
	LoadSettings(ctx context.Context, path string) (map[string]any, error)

	// SaveSettings writes data as JSON to path, creating parent
	// directories as needed. Errors are logged, not returned to the
	// caller's turn.
	SaveSettings(ctx context.Context, path string, data map[string]any) error
}
