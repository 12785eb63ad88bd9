// internal/continuity/engine_test.go
package continuity

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verseforge/storyboardmv/internal/llm"
)

type fakeVision struct {
	calls   int
	content string
}

func (f *fakeVision) AnalyzeImages(_ context.Context, req llm.VisionRequest) (*llm.TextResponse, error) {
	f.calls++
	return &llm.TextResponse{Content: f.content}, nil
}

func writeTestPNG(t *testing.T, dir string, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return path
}

func TestSimilarityScores(t *testing.T) {
	near := "a lone figure walks through neon rain down the empty boulevard at night"
	same := "a lone figure walks through neon rain down the empty boulevard at midnight"
	other := "sunrise over a quiet harbor with fishing boats and gulls"

	if s := Similarity(near, near); s != 1 {
		t.Errorf("identical prompts score %v, want 1", s)
	}
	if s := Similarity(near, same); s < 0.85 {
		t.Errorf("near-identical prompts score %v, want >= 0.85", s)
	}
	if s := Similarity(near, other); s > 0.2 {
		t.Errorf("unrelated prompts score %v, want <= 0.2", s)
	}
	if s := Similarity("", near); s != 0 {
		t.Errorf("empty prompt score %v, want 0", s)
	}
}

func TestShouldReferenceGates(t *testing.T) {
	e := NewEngine(nil, Options{SimilarityThreshold: 0.55, MinPromptLength: 40})

	long1 := "Neon-soaked city. A lone figure walks through neon rain down the boulevard."
	long2 := "Neon-soaked city. A lone figure runs through neon rain down the boulevard."
	unrelated := "Sunrise over a quiet harbor, fishing boats bobbing, gulls wheeling overhead."

	if !e.ShouldReference(long1, long2) {
		t.Error("similar long prompts must trigger the reference gate")
	}
	if e.ShouldReference(long1, unrelated) {
		t.Error("dissimilar prompts must not trigger the gate")
	}
	if e.ShouldReference("short one", "short two") {
		t.Error("prompts under the minimum length must not trigger the gate")
	}
}

func TestHintFetchesVisionDescription(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestPNG(t, dir, "scene_001.png", 16, 16)

	vision := &fakeVision{content: "Cool blue palette, hard side light, centered subject"}
	e := NewEngine(vision, Options{TempDir: dir})

	current := "Neon-soaked city. A lone figure walks through neon rain down the boulevard."
	previous := "Neon-soaked city. A lone figure runs through neon rain down the boulevard."

	hint, err := e.Hint(context.Background(), current, previous, imgPath)
	if err != nil {
		t.Fatalf("Hint failed: %v", err)
	}
	if !strings.Contains(hint, "Cool blue palette") {
		t.Errorf("hint missing vision description: %q", hint)
	}
	if !strings.Contains(hint, "only for continuity") {
		t.Errorf("hint missing continuity framing: %q", hint)
	}
	if vision.calls != 1 {
		t.Errorf("vision calls = %d, want 1", vision.calls)
	}
}

func TestHintSkipsDissimilarPrompts(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestPNG(t, dir, "scene_001.png", 16, 16)

	vision := &fakeVision{content: "anything"}
	e := NewEngine(vision, Options{TempDir: dir})

	hint, err := e.Hint(context.Background(),
		"Sunrise over a quiet harbor, fishing boats bobbing, gulls wheeling overhead.",
		"Neon-soaked city. A lone figure walks through neon rain down the boulevard.",
		imgPath)
	if err != nil {
		t.Fatalf("Hint failed: %v", err)
	}
	if hint != "" {
		t.Errorf("expected no hint for dissimilar prompts, got %q", hint)
	}
	if vision.calls != 0 {
		t.Errorf("vision must not be called when the gate is closed, got %d calls", vision.calls)
	}
}

func TestHintSkipsMissingImage(t *testing.T) {
	vision := &fakeVision{content: "anything"}
	e := NewEngine(vision, Options{TempDir: t.TempDir()})

	current := "Neon-soaked city. A lone figure walks through neon rain down the boulevard."
	previous := "Neon-soaked city. A lone figure runs through neon rain down the boulevard."

	hint, err := e.Hint(context.Background(), current, previous, filepath.Join(t.TempDir(), "missing.png"))
	if err != nil {
		t.Fatalf("Hint failed: %v", err)
	}
	if hint != "" || vision.calls != 0 {
		t.Errorf("missing image must close the gate: hint=%q calls=%d", hint, vision.calls)
	}
}

func TestCoverHintFraming(t *testing.T) {
	dir := t.TempDir()
	coverPath := writeTestPNG(t, dir, "album_cover.png", 16, 16)

	vision := &fakeVision{content: "Warm amber palette over a desert road"}
	e := NewEngine(vision, Options{TempDir: dir})

	hint, err := e.CoverHint(context.Background(), coverPath)
	if err != nil {
		t.Fatalf("CoverHint failed: %v", err)
	}
	if !strings.Contains(hint, "Warm amber palette") {
		t.Errorf("cover hint missing description: %q", hint)
	}
	if !strings.Contains(hint, "starting visual tone") || !strings.Contains(hint, "moving shot") {
		t.Errorf("cover hint missing framing: %q", hint)
	}
}

func TestDownscalePassThroughAndShrink(t *testing.T) {
	dir := t.TempDir()

	small := writeTestPNG(t, dir, "small.png", 32, 32)
	out, err := DownscaleForPayload(small, 512, dir)
	if err != nil {
		t.Fatalf("DownscaleForPayload failed: %v", err)
	}
	if out != small {
		t.Errorf("image within bounds must pass through, got %q", out)
	}

	large := writeTestPNG(t, dir, "large.png", 1024, 512)
	out, err = DownscaleForPayload(large, 256, dir)
	if err != nil {
		t.Fatalf("DownscaleForPayload failed: %v", err)
	}
	if out == large {
		t.Fatal("oversized image must be rewritten")
	}

	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("open downscaled image: %v", err)
	}
	defer file.Close()
	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode downscaled image: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 128 {
		t.Errorf("downscaled size = %dx%d, want 256x128", bounds.Dx(), bounds.Dy())
	}
}
