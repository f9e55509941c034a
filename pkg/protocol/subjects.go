// Package protocol defines the bus subjects and wire payload shapes the
// engine shares with the surrounding services. Everything on the wire
// is JSON; replier-side failures travel as {"error": "..."} payloads.
package protocol

// Request/reply subjects consumed by the engine.
const (
	SubjectLLMRequest      = "ai.llm.request"
	SubjectOCRRequest      = "ai.vision.ocr.request"
	SubjectImageGenRequest = "ai.vision.imagegen.request"
	SubjectFileSearch      = "system.file.search"

	// SubjectSystemActionPrefix + "<name>" addresses a named system
	// service action; request and reply shapes are service-defined.
	SubjectSystemActionPrefix = "system.action."
)

// Publish-only subjects produced by the engine.
const (
	// SubjectMusicGenerate carries a fire-and-forget generation request;
	// the result arrives asynchronously on the session's conversation
	// subject.
	SubjectMusicGenerate = "agent.music.generate"

	// SubjectCommandEvent carries best-effort observability events for
	// executed shell commands.
	SubjectCommandEvent = "temporal.command.new"
)

// ConversationSubject returns the session-scoped streaming subject on
// which asynchronous results (music_result) are delivered.
func ConversationSubject(sessionID string) string {
	return "conversation." + sessionID
}

// Conversation stream message types (in payload "type").
const (
	ConversationEventMusicResult = "music_result"
)
