package planner

import (
	"strings"
	"testing"

	"github.com/neuralux/convoengine/internal/convo"
)

func newSession(t *testing.T) *convo.Session {
	t.Helper()
	return convo.NewSession("tester@host", "tester")
}

// --- music fast path ---

func TestMusicFastPath_ExplicitGenerate(t *testing.T) {
	p := New(nil, nil)
	actions, _, matched := p.tryMusicFastPath("generate a heavy metal song")
	if !matched {
		t.Fatal("explicit music request did not match")
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1 (no save without save verb)", len(actions))
	}
	if actions[0].Kind != convo.ActionMusicGenerate {
		t.Errorf("kind = %s", actions[0].Kind)
	}
	if got := actions[0].ParamString("prompt"); !strings.Contains(got, "heavy metal") {
		t.Errorf("prompt = %q", got)
	}
	if !actions[0].NeedsApproval {
		t.Error("music_generate must require approval")
	}
}

func TestMusicFastPath_GenerateAndSave(t *testing.T) {
	p := New(nil, nil)
	actions, _, matched := p.tryMusicFastPath("generate a heavy metal song and save it")
	if !matched {
		t.Fatal("music request did not match")
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
	if actions[1].Kind != convo.ActionMusicSave {
		t.Errorf("second kind = %s, want music_save", actions[1].Kind)
	}
	if got := actions[1].ParamString("src_path"); got != "{{last_generated_music}}" {
		t.Errorf("src_path = %q", got)
	}
	if got := actions[1].ParamString("dst_path"); got != "~/Music" {
		t.Errorf("dst_path = %q", got)
	}
}

func TestMusicFastPath_LyricsExcluded(t *testing.T) {
	p := New(nil, nil)
	if _, _, matched := p.tryMusicFastPath("write lyrics for a sad song"); matched {
		t.Error("lyrics request must not take the music fast path")
	}
}

func TestMusicFastPath_ImplicitDescriptive(t *testing.T) {
	p := New(nil, nil)
	actions, _, matched := p.tryMusicFastPath("medieval music with flutes")
	if !matched {
		t.Fatal("implicit descriptive music request did not match")
	}
	if actions[0].Kind != convo.ActionMusicGenerate {
		t.Errorf("kind = %s", actions[0].Kind)
	}
}

// --- informational fast path ---

func TestIsInformationalQuery(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"hello", true},
		{"what is the capital of France?", true},
		{"how are you", true},
		{"create a file named todo.txt", false},
		{"generate an image of a sunset", false},
		{"list files in my home", false},
	}
	for _, tt := range tests {
		if got := isInformationalQuery(strings.ToLower(tt.in)); got != tt.want {
			t.Errorf("isInformationalQuery(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInformationalFastPath(t *testing.T) {
	p := New(nil, nil)
	actions, _ := p.informationalFastPath("hello")
	if len(actions) != 1 || actions[0].Kind != convo.ActionLLMGenerate {
		t.Fatalf("actions = %+v", actions)
	}
	if !actions[0].ParamBool("use_history", false) {
		t.Error("use_history must be true")
	}
	if actions[0].NeedsApproval {
		t.Error("informational reply must not need approval")
	}
}

// --- quick reference patterns ---

func TestQuickReference_OpenLink(t *testing.T) {
	p := New(nil, nil)
	s := newSession(t)
	s.SetVariable(convo.VarLastSearchResults, []map[string]any{
		{"title": "one", "url": "https://example.com/a"},
		{"title": "two", "url": "https://example.com/b"},
	})

	actions, _ := p.tryQuickReferencePatterns("open link 2", s)
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	cmd := actions[0].ParamString("command")
	if !strings.Contains(cmd, "xdg-open 'https://example.com/b'") {
		t.Errorf("command = %q", cmd)
	}
	if !actions[0].NeedsApproval {
		t.Error("open link must need approval")
	}
}

func TestQuickReference_OpenDocument(t *testing.T) {
	p := New(nil, nil)
	s := newSession(t)
	s.SetVariable(convo.VarLastQueryResults, []map[string]any{
		{"file_path": "/docs/report.pdf"},
	})

	actions, _ := p.tryQuickReferencePatterns("open document 1", s)
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	if cmd := actions[0].ParamString("command"); !strings.Contains(cmd, "/docs/report.pdf") {
		t.Errorf("command = %q", cmd)
	}
}

func TestQuickReference_NoContextNoMatch(t *testing.T) {
	p := New(nil, nil)
	if actions, _ := p.tryQuickReferencePatterns("open link 1", newSession(t)); len(actions) != 0 {
		t.Errorf("matched without search results: %+v", actions)
	}
}

// --- sanitization ---

func TestSanitize_DropsUnrelatedMusic(t *testing.T) {
	s := newSession(t)
	actions := []*convo.Action{
		{Kind: convo.ActionMusicGenerate, Params: map[string]any{"prompt": "x"}},
		{Kind: convo.ActionCommandExecute, Params: map[string]any{"command": "ls"}},
	}
	out, dropped := sanitizePlannedActions("list my files", "list my files", nil, s, actions)
	if !dropped {
		t.Error("expected a drop")
	}
	if len(out) != 1 || out[0].Kind != convo.ActionCommandExecute {
		t.Errorf("survivors = %+v", out)
	}
}

func TestSanitize_DropsMusicSaveWithoutSaveVerb(t *testing.T) {
	s := newSession(t)
	actions := []*convo.Action{
		{Kind: convo.ActionMusicGenerate, Params: map[string]any{"prompt": "x"}},
		{Kind: convo.ActionMusicSave, Params: map[string]any{}},
	}
	out, dropped := sanitizePlannedActions("generate a song", "generate a song", nil, s, actions)
	if !dropped {
		t.Error("expected music_save dropped")
	}
	for _, a := range out {
		if a.Kind == convo.ActionMusicSave {
			t.Error("music_save survived without save verb or music context")
		}
	}
}

func TestSanitize_KeepsMatchingImage(t *testing.T) {
	s := newSession(t)
	actions := []*convo.Action{
		{Kind: convo.ActionImageGenerate, Params: map[string]any{"prompt": "a sunset"}},
	}
	out, dropped := sanitizePlannedActions("generate an image of a sunset", "generate an image of a sunset", nil, s, actions)
	if dropped || len(out) != 1 {
		t.Errorf("image action wrongly dropped: %+v", out)
	}
}

// --- LLM plan parsing ---

func TestParsePlanJSON_Fenced(t *testing.T) {
	content := "Here is the plan:\n```json\n{\"explanation\": \"do it\", \"actions\": [{\"action_type\": \"command_execute\", \"params\": {\"command\": \"ls\"}, \"description\": \"list\", \"needs_approval\": true}]}\n```\nDone."
	plan, err := parsePlanJSON(content)
	if err != nil {
		t.Fatalf("parsePlanJSON: %v", err)
	}
	if plan.Explanation != "do it" || len(plan.Actions) != 1 {
		t.Errorf("plan = %+v", plan)
	}
}

func TestParsePlanJSON_BareWithTrailingProse(t *testing.T) {
	content := `{"explanation": "ok", "actions": []} and some trailing words`
	plan, err := parsePlanJSON(content)
	if err != nil {
		t.Fatalf("parsePlanJSON: %v", err)
	}
	if plan.Explanation != "ok" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestParsePlanJSON_Garbage(t *testing.T) {
	if _, err := parsePlanJSON("no json here at all"); err == nil {
		t.Error("expected parse error")
	}
}

// --- fallback planner ---

func TestFallback_CreateFile(t *testing.T) {
	actions, _ := fallbackPlanActions("create a file named todo.txt", nil, newSession(t))
	if len(actions) != 1 {
		t.Fatalf("actions = %d", len(actions))
	}
	if got := actions[0].ParamString("command"); got != "touch todo.txt" {
		t.Errorf("command = %q", got)
	}
	if !actions[0].NeedsApproval {
		t.Error("shell command must need approval")
	}
}

func TestFallback_CreateFolder(t *testing.T) {
	actions, _ := fallbackPlanActions("create a folder named projects", nil, newSession(t))
	if len(actions) != 1 {
		t.Fatalf("actions = %d", len(actions))
	}
	if got := actions[0].ParamString("command"); got != "mkdir -p ~/projects" {
		t.Errorf("command = %q", got)
	}
}

func TestFallback_WriteGeneratedContent(t *testing.T) {
	s := newSession(t)
	s.SetVariable(convo.VarLastCreatedFile, "todo.txt")
	actions, _ := fallbackPlanActions("write a summary about go in it", nil, s)
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want llm_generate + command_execute", len(actions))
	}
	if actions[0].Kind != convo.ActionLLMGenerate {
		t.Errorf("first kind = %s", actions[0].Kind)
	}
	if got := actions[1].ParamString("command"); got != "cat > todo.txt" {
		t.Errorf("command = %q", got)
	}
}

func TestFallback_GenerateImage(t *testing.T) {
	actions, _ := fallbackPlanActions("generate an image of a sunset", nil, newSession(t))
	if len(actions) != 1 || actions[0].Kind != convo.ActionImageGenerate {
		t.Fatalf("actions = %+v", actions)
	}
	if got := actions[0].ParamString("prompt"); got != "a sunset" {
		t.Errorf("prompt = %q", got)
	}
	if actions[0].NeedsApproval {
		t.Error("image_generate must not need approval")
	}
}

func TestFallback_SaveImageFromContext(t *testing.T) {
	s := newSession(t)
	s.SetVariable(convo.VarLastGeneratedImage, "/tmp/sunset.png")
	actions, _ := fallbackPlanActions("save it to my Pictures folder", map[string]any{convo.SlotImagePath: "/tmp/sunset.png"}, s)
	if len(actions) != 1 || actions[0].Kind != convo.ActionImageSave {
		t.Fatalf("actions = %+v", actions)
	}
	if got := actions[0].ParamString("src_path"); got != "/tmp/sunset.png" {
		t.Errorf("src_path = %q", got)
	}
	if got := actions[0].ParamString("dst_path"); got != "pictures" {
		t.Errorf("dst_path = %q", got)
	}
}

func TestFallback_WebSearch(t *testing.T) {
	actions, _ := fallbackPlanActions("search the web for golang generics", nil, newSession(t))
	if len(actions) != 1 || actions[0].Kind != convo.ActionWebSearch {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestFallback_OpenApplication(t *testing.T) {
	actions, _ := fallbackPlanActions("open firefox", nil, newSession(t))
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
	if got := actions[0].ParamString("command"); got != "firefox &" {
		t.Errorf("command = %q", got)
	}
}

func TestFallback_DefaultLLM(t *testing.T) {
	actions, _ := fallbackPlanActions("ponder the meaning of blue", nil, newSession(t))
	if len(actions) != 1 || actions[0].Kind != convo.ActionLLMGenerate {
		t.Fatalf("actions = %+v", actions)
	}
	if !actions[0].ParamBool("use_history", false) {
		t.Error("default llm_generate should carry history")
	}
}

// --- enrichment and command fixes ---

func TestEnrich_ReplacesPlaceholderWhenSet(t *testing.T) {
	s := newSession(t)
	s.SetVariable(convo.VarLastGeneratedImage, "/tmp/sunset.png")
	action := &convo.Action{
		Kind:   convo.ActionImageSave,
		Params: map[string]any{"src_path": "{{last_generated_image}}", "dst_path": "~/Pictures"},
	}
	enrichActionParams(action, nil, s)
	if got := action.ParamString("src_path"); got != "/tmp/sunset.png" {
		t.Errorf("src_path = %q", got)
	}
}

func TestEnrich_LeavesPlaceholderWhenUnset(t *testing.T) {
	action := &convo.Action{
		Kind:   convo.ActionMusicSave,
		Params: map[string]any{"src_path": "{{last_generated_music}}", "dst_path": "~/Music"},
	}
	enrichActionParams(action, nil, newSession(t))
	if got := action.ParamString("src_path"); got != "{{last_generated_music}}" {
		t.Errorf("src_path = %q, placeholder must survive until generation completes", got)
	}
}

func TestEnrich_BackfillsFromResolvedValues(t *testing.T) {
	action := &convo.Action{
		Kind:   convo.ActionImageSave,
		Params: map[string]any{"dst_path": "~/Pictures"},
	}
	enrichActionParams(action, map[string]any{convo.SlotImagePath: "/tmp/a.png"}, newSession(t))
	if got := action.ParamString("src_path"); got != "/tmp/a.png" {
		t.Errorf("src_path = %q", got)
	}
}

func TestFixApplicationOpeningCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"xdg-open firefox", "firefox &"},
		{"xdg-open 'https://example.com'", "xdg-open 'https://example.com'"},
		{"xdg-open ~/notes.txt", "xdg-open ~/notes.txt"},
		{"xdg-open report.pdf", "xdg-open report.pdf"},
		{"ls -la", "ls -la"},
	}
	for _, tt := range tests {
		action := &convo.Action{
			Kind:        convo.ActionCommandExecute,
			Params:      map[string]any{"command": tt.in},
			Description: "Execute: " + tt.in,
		}
		fixApplicationOpeningCommand(action)
		if got := action.ParamString("command"); got != tt.want {
			t.Errorf("fix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
