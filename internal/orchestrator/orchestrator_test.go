package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/convo"
)

// fakeBus records publishes and answers requests from a canned reply
// table keyed by subject.
type fakeBus struct {
	mu        sync.Mutex
	replies   map[string]any
	errors    map[string]error
	published []fakePublish
}

type fakePublish struct {
	Subject string
	Payload any
}

func newFakeBus() *fakeBus {
	return &fakeBus{replies: map[string]any{}, errors: map[string]error{}}
}

func (f *fakeBus) Connect(ctx context.Context) error { return nil }
func (f *fakeBus) Disconnect() error                 { return nil }

func (f *fakeBus) Publish(ctx context.Context, subject string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakePublish{Subject: subject, Payload: value})
	return nil
}

func (f *fakeBus) Request(ctx context.Context, subject string, value any, timeout time.Duration, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errors[subject]; ok {
		return err
	}
	reply, ok := f.replies[subject]
	if !ok {
		return &bus.ErrTimeout{Subject: subject}
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeBus) Subscribe(ctx context.Context, subject, queue string, handler bus.Handler) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeBus) ReplyHandler(ctx context.Context, subject, queue string, fn bus.ReplyFunc) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeBus) publishedTo(subject string) []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakePublish
	for _, p := range f.published {
		if p.Subject == subject {
			out = append(out, p)
		}
	}
	return out
}

var _ bus.Adapter = (*fakeBus)(nil)

func newTestOrchestrator(fb *fakeBus) *Orchestrator {
	o := New(fb, nil, nil)
	// The default per-session limiter (burst 3) applies; no test here
	// runs enough commands on one session to be throttled by it.
	return o
}

func testSession(t *testing.T) *convo.Session {
	t.Helper()
	s := convo.NewSession("tester@host", "tester")
	s.WorkingDirectory = t.TempDir()
	return s
}

func TestExecuteAction_UnknownKind(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	action := &convo.Action{Kind: convo.ActionKind("teleport"), Params: map[string]any{}}

	result := o.ExecuteAction(context.Background(), action, testSession(t))
	if result.Success {
		t.Fatal("unknown kind must fail")
	}
	if action.Status != convo.StatusFailed {
		t.Errorf("status = %s", action.Status)
	}
}

func TestLLMGenerate(t *testing.T) {
	fb := newFakeBus()
	fb.replies["ai.llm.request"] = map[string]any{"content": "hi there"}
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionLLMGenerate, Params: map[string]any{"prompt": "hello"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if got := result.Details["content"]; got != "hi there" {
		t.Errorf("content = %v", got)
	}
	if got := s.GetVariable(convo.VarLastGeneratedText, ""); got != "hi there" {
		t.Errorf("last_generated_text = %v", got)
	}
}

func TestLLMGenerate_MissingPrompt(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	action := &convo.Action{Kind: convo.ActionLLMGenerate, Params: map[string]any{}}

	result := o.ExecuteAction(context.Background(), action, testSession(t))
	if result.Success || result.ErrorKind != convo.ErrMissingParam {
		t.Errorf("result = %+v", result)
	}
}

func TestLLMGenerate_Timeout(t *testing.T) {
	o := newTestOrchestrator(newFakeBus()) // no reply registered -> timeout
	action := &convo.Action{Kind: convo.ActionLLMGenerate, Params: map[string]any{"prompt": "x"}}

	result := o.ExecuteAction(context.Background(), action, testSession(t))
	if result.Success || result.ErrorKind != convo.ErrTransportTimeout {
		t.Errorf("result = %+v", result)
	}
}

func TestLLMGenerate_RemoteError(t *testing.T) {
	fb := newFakeBus()
	fb.errors["ai.llm.request"] = &bus.ErrRemote{Subject: "ai.llm.request", Message: "model unavailable"}
	o := newTestOrchestrator(fb)
	action := &convo.Action{Kind: convo.ActionLLMGenerate, Params: map[string]any{"prompt": "x"}}

	result := o.ExecuteAction(context.Background(), action, testSession(t))
	if result.Success || result.ErrorKind != convo.ErrRemoteError {
		t.Errorf("result = %+v", result)
	}
	if result.Error != "model unavailable" {
		t.Errorf("error = %q", result.Error)
	}
}

func TestImageGenerate_Defaults(t *testing.T) {
	fb := newFakeBus()
	fb.replies["ai.vision.imagegen.request"] = map[string]any{"image_path": "/tmp/out.png"}
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionImageGenerate, Params: map[string]any{"prompt": "a sunset"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if got := result.Details["width"]; got != 1024 {
		t.Errorf("width = %v", got)
	}
	if got := s.GetVariable(convo.VarLastGeneratedImage, ""); got != "/tmp/out.png" {
		t.Errorf("last_generated_image = %v", got)
	}
}

func TestMusicGenerate_PublishOnly(t *testing.T) {
	fb := newFakeBus()
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionMusicGenerate, Params: map[string]any{"prompt": "metal"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if got := result.Details["status"]; got != "pending" {
		t.Errorf("status = %v", got)
	}
	if pubs := fb.publishedTo("agent.music.generate"); len(pubs) != 1 {
		t.Errorf("published = %d, want 1", len(pubs))
	}
	// No file yet, so the context variable must stay unset.
	if got := s.GetVariable(convo.VarLastGeneratedMusic, ""); got != "" {
		t.Errorf("last_generated_music = %v", got)
	}
}

func TestDocumentQuery_EmptyResults(t *testing.T) {
	fb := newFakeBus()
	fb.replies["system.file.search"] = map[string]any{"results": []any{}, "count": 0}
	o := newTestOrchestrator(fb)
	s := testSession(t)

	action := &convo.Action{Kind: convo.ActionDocumentQuery, Params: map[string]any{"query": "nothing"}}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	results, ok := s.GetVariable(convo.VarLastQueryResults, nil).([]map[string]any)
	if !ok || len(results) != 0 {
		t.Errorf("last_query_results = %#v, want empty list", s.GetVariable(convo.VarLastQueryResults, nil))
	}
}

func TestSystemCommand(t *testing.T) {
	fb := newFakeBus()
	fb.replies["system.action.lock_screen"] = map[string]any{"ok": true}
	o := newTestOrchestrator(fb)

	action := &convo.Action{Kind: convo.ActionSystemCommand, Params: map[string]any{"action": "lock_screen"}}
	result := o.ExecuteAction(context.Background(), action, testSession(t))

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	if got := result.Details["ok"]; got != true {
		t.Errorf("details = %v", result.Details)
	}
}
