package convo

import "strings"

// ArchivedConversation is an immutable snapshot of a session, written
// on reset and retained as a bounded list (last N per user), keyed by
// user_id, with a title synthesized from the first user turn.
type ArchivedConversation struct {
	ID               int64  `json:"id"`
	UpdatedAt        int64  `json:"updated_at"`
	Title            string `json:"title"`
	WorkingDirectory string `json:"working_directory"`
	Turns            []Turn `json:"turns,omitempty"`
}

const archiveTitleMaxLen = 80

// Archive builds a compact ArchivedConversation snapshot from a live
// session, synthesizing the title from the first user turn.
func Archive(s *Session) ArchivedConversation {
	title := ""
	for _, t := range s.Turns {
		if t.Role == RoleUser && strings.TrimSpace(t.Content) != "" {
			title = strings.TrimSpace(t.Content)
			break
		}
	}
	if len(title) > archiveTitleMaxLen {
		title = title[:archiveTitleMaxLen]
	}
	return ArchivedConversation{
		ID:               s.UpdatedAt,
		UpdatedAt:        s.UpdatedAt,
		Title:            title,
		WorkingDirectory: s.WorkingDirectory,
		Turns:            s.Turns,
	}
}
