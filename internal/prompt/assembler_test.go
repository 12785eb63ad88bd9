// internal/prompt/assembler_test.go
package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/verseforge/storyboardmv/internal/llm"
	"github.com/verseforge/storyboardmv/internal/models"
)

type fakeQuerier struct {
	calls  int
	answer string
}

func (f *fakeQuerier) GenerateText(_ context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	f.calls++
	return &llm.TextResponse{Content: f.answer}, nil
}

func TestAssembleOrdering(t *testing.T) {
	a := NewAssembler(nil, nil)

	out, err := a.Assemble(context.Background(), Input{
		Scene:          3,
		PresetKey:      "noir",
		Body:           "A singer walks through rain.",
		Lyrics:         "walking home alone",
		ContinuityHint: "Reference image (previous scene): cool palette.",
		Theme: models.ThemeContext{
			ThemePrefix:   "Cinematic noir, 35mm.",
			PersonaName:   "Mara",
			EmbedLyrics:   true,
			EmbedKeywords: true,
			Keywords:      []string{"neon", "wet asphalt"},
		},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	positions := []string{
		"Reference image (previous scene)",
		"Cinematic noir, 35mm.",
		"A singer walks through rain.",
		"appears in this scene",
		"Embed the lyric text",
		"visual keywords",
	}
	last := -1
	for _, marker := range positions {
		idx := strings.Index(out, marker)
		if idx < 0 {
			t.Fatalf("assembled prompt missing %q:\n%s", marker, out)
		}
		if idx <= last {
			t.Errorf("%q out of order in assembled prompt:\n%s", marker, out)
		}
		last = idx
	}
}

func TestAssembleMemoizesPerSceneAndPreset(t *testing.T) {
	querier := &fakeQuerier{answer: "yes"}
	a := NewAssembler(nil, querier)

	in := Input{
		Scene:     1,
		PresetKey: "noir",
		Body:      "A tall figure waits by the window.",
		Theme: models.ThemeContext{
			PersonaName:        "Mara",
			PersonaDescriptors: []string{"red coat"},
		},
	}

	first, err := a.Assemble(context.Background(), in)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	second, err := a.Assemble(context.Background(), in)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if first != second {
		t.Error("memoized assembly must be byte-identical")
	}
	if querier.calls != 1 {
		t.Errorf("collaborator consulted %d times, want 1 (second call served from cache)", querier.calls)
	}

	in.PresetKey = "pastel"
	if _, err := a.Assemble(context.Background(), in); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if querier.calls != 2 {
		t.Errorf("a new preset key must recompute, got %d calls", querier.calls)
	}
}

func TestPersonaSuppressedByNoCharacterMarker(t *testing.T) {
	a := NewAssembler(nil, &fakeQuerier{answer: "yes"})

	out, err := a.Assemble(context.Background(), Input{
		Scene: 1,
		Body:  "Empty scene, no characters, just a flooded street at dawn.",
		Theme: models.ThemeContext{
			PersonaName:        "Mara",
			PersonaDescriptors: []string{"red coat"},
		},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if strings.Contains(out, "appears in this scene") {
		t.Errorf("no-character marker must suppress the persona block:\n%s", out)
	}
}

func TestPersonaDetectedByCueWithoutCollaborator(t *testing.T) {
	querier := &fakeQuerier{answer: "no"}
	a := NewAssembler(nil, querier)

	out, err := a.Assemble(context.Background(), Input{
		Scene: 1,
		Body:  "The vocalist leans into the mic under a single spotlight.",
		Theme: models.ThemeContext{
			PersonaName:        "Mara",
			PersonaDescriptors: []string{"red coat"},
		},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !strings.Contains(out, "red coat") {
		t.Errorf("cue word must include the persona block directly:\n%s", out)
	}
	if querier.calls != 0 {
		t.Errorf("direct cue must skip the collaborator query, got %d calls", querier.calls)
	}
}

func TestPersonaFallbackQuery(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"affirmative", "Yes.", true},
		{"negative", "no", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			querier := &fakeQuerier{answer: tc.answer}
			a := NewAssembler(nil, querier)

			out, err := a.Assemble(context.Background(), Input{
				Scene: 1,
				Body:  "A tall figure waits by the window.",
				Theme: models.ThemeContext{
					PersonaName:        "Mara",
					PersonaDescriptors: []string{"red coat"},
				},
			})
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if querier.calls != 1 {
				t.Fatalf("expected one fallback query, got %d", querier.calls)
			}
			if got := strings.Contains(out, "red coat"); got != tc.want {
				t.Errorf("persona block present = %v, want %v:\n%s", got, tc.want, out)
			}
		})
	}
}

func TestPersonaWithoutDescriptorsNeverQueries(t *testing.T) {
	querier := &fakeQuerier{answer: "yes"}
	a := NewAssembler(nil, querier)

	out, err := a.Assemble(context.Background(), Input{
		Scene: 1,
		Body:  "A tall figure waits by the window.",
		Theme: models.ThemeContext{PersonaName: "Mara"},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if querier.calls != 0 {
		t.Errorf("no descriptors means no fallback query, got %d calls", querier.calls)
	}
	if strings.Contains(out, "appears in this scene") {
		t.Errorf("unnamed scene without cues must omit the persona block:\n%s", out)
	}
}

func TestLyricPolicyInstructions(t *testing.T) {
	a := NewAssembler(nil, nil)

	embedded, err := a.Assemble(context.Background(), Input{
		Scene:  1,
		Body:   "A city street.",
		Lyrics: "walking home alone",
		Theme:  models.ThemeContext{EmbedLyrics: true},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !strings.Contains(embedded, "never as an overlay or subtitle") {
		t.Errorf("embed policy text missing:\n%s", embedded)
	}

	moodOnly, err := a.Assemble(context.Background(), Input{
		Scene:  2,
		Body:   "A city street.",
		Lyrics: "walking home alone",
		Theme:  models.ThemeContext{EmbedLyrics: false},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !strings.Contains(moodOnly, "render no text anywhere in the frame") {
		t.Errorf("mood-only policy text missing:\n%s", moodOnly)
	}
}

func TestAssembleOmitsLyricLineForTextFreeScene(t *testing.T) {
	a := NewAssembler(nil, nil)

	out, err := a.Assemble(context.Background(), Input{
		Scene: 1,
		Body:  "A city street.",
		Theme: models.ThemeContext{EmbedLyrics: true},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if strings.Contains(out, "lyric") {
		t.Errorf("text-free scene must carry no lyric instruction:\n%s", out)
	}
}

func TestAssembleAppliesSubstitutions(t *testing.T) {
	a := NewAssembler(nil, nil)

	out, err := a.Assemble(context.Background(), Input{
		Scene: 1,
		Body:  "Blood on the dance floor under strobe lights.",
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if strings.Contains(strings.ToLower(out), "blood") {
		t.Errorf("banned term must be substituted:\n%s", out)
	}
	if !strings.Contains(out, "crimson light") {
		t.Errorf("substitution missing:\n%s", out)
	}
}
