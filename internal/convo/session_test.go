package convo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSession_AddTurnAppendOnly(t *testing.T) {
	s := NewSession("alice@host", "alice")
	before := s.UpdatedAt

	s.AddTurn(Turn{Role: RoleUser, Content: "hello", Timestamp: NowMillis()})
	s.AddTurn(Turn{Role: RoleAssistant, Content: "hi", Timestamp: NowMillis()})

	if len(s.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(s.Turns))
	}
	if s.Turns[0].Content != "hello" || s.Turns[1].Content != "hi" {
		t.Errorf("turn order not preserved: %+v", s.Turns)
	}
	if s.UpdatedAt < before {
		t.Errorf("UpdatedAt decreased: %d -> %d", before, s.UpdatedAt)
	}
}

func TestSession_Variables(t *testing.T) {
	s := NewSession("alice@host", "alice")

	if got := s.GetVariable("missing", "default"); got != "default" {
		t.Errorf("GetVariable(missing) = %v, want default", got)
	}
	s.SetVariable(VarLastGeneratedText, "a poem")
	if got := s.GetVariable(VarLastGeneratedText, ""); got != "a poem" {
		t.Errorf("GetVariable = %v, want a poem", got)
	}
}

func TestSession_GetLastActionResult(t *testing.T) {
	s := NewSession("alice@host", "alice")
	s.AddTurn(Turn{Role: RoleAssistant, Content: "done", ActionResult: NewSuccess(ActionImageGenerate, nil)})
	s.AddTurn(Turn{Role: RoleAssistant, Content: "done", ActionResult: NewSuccess(ActionLLMGenerate, nil)})

	if got := s.GetLastActionResult(""); got == nil || got.Kind != ActionLLMGenerate {
		t.Errorf("GetLastActionResult(any) = %+v, want llm_generate", got)
	}
	if got := s.GetLastActionResult(ActionImageGenerate); got == nil || got.Kind != ActionImageGenerate {
		t.Errorf("GetLastActionResult(image) = %+v, want image_generate", got)
	}
	if got := s.GetLastActionResult(ActionMusicGenerate); got != nil {
		t.Errorf("GetLastActionResult(music) = %+v, want nil", got)
	}
}

func TestSession_GetChatHistoryLimit(t *testing.T) {
	s := NewSession("alice@host", "alice")
	for i := 0; i < 5; i++ {
		s.AddTurn(Turn{Role: RoleUser, Content: "msg", Timestamp: NowMillis()})
	}

	if got := len(s.GetChatHistory(3)); got != 3 {
		t.Errorf("GetChatHistory(3) len = %d, want 3", got)
	}
	if got := len(s.GetChatHistory(0)); got != 5 {
		t.Errorf("GetChatHistory(0) len = %d, want 5", got)
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := NewSession("alice@host", "alice")
	s.AddTurn(Turn{Role: RoleUser, Content: "hello", Timestamp: 42})
	s.SetVariable(VarLastCreatedFile, "/tmp/todo.txt")
	s.WorkingDirectory = "/tmp"

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.SessionID != s.SessionID || decoded.UserID != s.UserID {
		t.Errorf("identity fields lost: %+v", decoded)
	}
	if len(decoded.Turns) != 1 || decoded.Turns[0].Content != "hello" {
		t.Errorf("turns lost: %+v", decoded.Turns)
	}
	if got := decoded.GetVariable(VarLastCreatedFile, ""); got != "/tmp/todo.txt" {
		t.Errorf("variable lost: %v", got)
	}
	if decoded.WorkingDirectory != "/tmp" {
		t.Errorf("working_directory lost: %v", decoded.WorkingDirectory)
	}
}

func TestDefaultSessionID(t *testing.T) {
	id := DefaultSessionID("")
	if !strings.Contains(id, "@") {
		t.Errorf("DefaultSessionID() = %q, want user@host shape", id)
	}
	withSuffix := DefaultSessionID("term2")
	if !strings.HasSuffix(withSuffix, ":term2") {
		t.Errorf("DefaultSessionID(term2) = %q, want :term2 suffix", withSuffix)
	}
}

func TestArchive_TitleFromFirstUserTurn(t *testing.T) {
	s := NewSession("alice@host", "alice")
	s.AddTurn(Turn{Role: RoleAssistant, Content: "welcome"})
	s.AddTurn(Turn{Role: RoleUser, Content: "  generate an image of a sunset  "})

	a := Archive(s)
	if a.Title != "generate an image of a sunset" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.ID != s.UpdatedAt {
		t.Errorf("ID = %d, want UpdatedAt %d", a.ID, s.UpdatedAt)
	}
}

func TestArchive_TitleTruncated(t *testing.T) {
	s := NewSession("alice@host", "alice")
	s.AddTurn(Turn{Role: RoleUser, Content: strings.Repeat("x", 200)})

	a := Archive(s)
	if len(a.Title) != 80 {
		t.Errorf("Title len = %d, want 80", len(a.Title))
	}
}
