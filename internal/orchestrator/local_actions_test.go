package orchestrator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/neuralux/convoengine/internal/convo"
)

// writeTestPNG writes a tiny valid PNG at path.
func writeTestPNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageSave_ToDirectory(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	src := filepath.Join(t.TempDir(), "sunset.png")
	want := writeTestPNG(t, src)
	dstDir := filepath.Join(s.WorkingDirectory, "gallery")

	action := &convo.Action{
		Kind:   convo.ActionImageSave,
		Params: map[string]any{"src_path": src, "dst_path": dstDir},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	savedPath, _ := result.Details["saved_path"].(string)
	if filepath.Base(savedPath) != "sunset.png" {
		t.Errorf("saved_path = %q", savedPath)
	}
	got, err := os.ReadFile(savedPath)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("saved bytes differ from source")
	}
	if v, _ := s.GetVariable(convo.VarLastSavedImage, "").(string); v != savedPath {
		t.Errorf("last_saved_image = %q", v)
	}
}

func TestImageSave_SourceNotFound(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{
		Kind:   convo.ActionImageSave,
		Params: map[string]any{"src_path": "/nonexistent/a.png", "dst_path": s.WorkingDirectory},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if result.Success || result.ErrorKind != convo.ErrSourceNotFound {
		t.Errorf("result = %+v", result)
	}
}

func TestImageSave_CorruptSource(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	src := filepath.Join(t.TempDir(), "broken.png")
	os.WriteFile(src, []byte("not an image"), 0o644)

	action := &convo.Action{
		Kind:   convo.ActionImageSave,
		Params: map[string]any{"src_path": src, "dst_path": s.WorkingDirectory},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if result.Success || result.ErrorKind != convo.ErrIOError {
		t.Errorf("result = %+v", result)
	}
}

func TestImageSave_MissingParams(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	for _, params := range []map[string]any{
		{"dst_path": "~/Pictures"},
		{"src_path": "/tmp/a.png"},
	} {
		action := &convo.Action{Kind: convo.ActionImageSave, Params: params}
		result := o.ExecuteAction(context.Background(), action, s)
		if result.Success || result.ErrorKind != convo.ErrMissingParam {
			t.Errorf("params %v: result = %+v", params, result)
		}
	}
}

func TestMusicSave_PlaceholderDeferred(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)

	action := &convo.Action{
		Kind:   convo.ActionMusicSave,
		Params: map[string]any{"src_path": "{{last_generated_music}}", "dst_path": "~/Music"},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("deferred music_save must not fail: %s", result.Error)
	}
	if got := result.Details["status"]; got != "deferred" {
		t.Errorf("status = %v", got)
	}
	if v := s.GetVariable(convo.VarLastSavedMusic, ""); v != "" {
		t.Errorf("last_saved_music prematurely set: %v", v)
	}
}

func TestMusicSave_CopiesFile(t *testing.T) {
	o := newTestOrchestrator(newFakeBus())
	s := testSession(t)
	src := filepath.Join(t.TempDir(), "track.wav")
	os.WriteFile(src, []byte("RIFFdata"), 0o644)
	dstDir := filepath.Join(s.WorkingDirectory, "music")

	action := &convo.Action{
		Kind:   convo.ActionMusicSave,
		Params: map[string]any{"src_path": src, "dst_path": dstDir},
	}
	result := o.ExecuteAction(context.Background(), action, s)

	if !result.Success {
		t.Fatalf("failed: %s", result.Error)
	}
	savedPath, _ := result.Details["saved_path"].(string)
	data, err := os.ReadFile(savedPath)
	if err != nil || string(data) != "RIFFdata" {
		t.Errorf("saved file = %q, err %v", data, err)
	}
}
