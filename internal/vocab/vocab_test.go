// internal/vocab/vocab_test.go
package vocab

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsNonLyric(t *testing.T) {
	v := Default()

	tests := []struct {
		text string
		want bool
	}{
		{"(instrumental)", true},
		{"[Instrumental]", true},
		{"instrumental", true},
		{"applause", true},
		{"", true},
		{"walking home alone", false},
		{"instrumental music fades as she sings", false},
	}
	for _, tc := range tests {
		if got := v.IsNonLyric(tc.text); got != tc.want {
			t.Errorf("IsNonLyric(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestStripStructuralMarkers(t *testing.T) {
	v := Default()

	tests := []struct {
		line string
		want string
	}{
		{"[Chorus] we rise again", "we rise again"},
		{"(Verse 2) down by the river", "down by the river"},
		{"we rise again", "we rise again"},
		{"[Pre-Chorus x2] hold on", "hold on"},
		{"she said (quietly) hold on", "she said (quietly) hold on"},
		{"[Bridge]", ""},
	}
	for _, tc := range tests {
		if got := v.StripStructuralMarkers(tc.line); got != tc.want {
			t.Errorf("StripStructuralMarkers(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestApplySubstitutions(t *testing.T) {
	v := Default()

	tests := []struct {
		text string
		want string
	}{
		{"blood on the floor", "crimson light on the floor"},
		{"Blood on the floor", "crimson light on the floor"},
		{"bloodhound on the trail", "bloodhound on the trail"},
		{"a gun and a knife", "a silhouetted prop and a glinting metal"},
		{"nothing to change", "nothing to change"},
	}
	for _, tc := range tests {
		if got := v.Apply(tc.text); got != tc.want {
			t.Errorf("Apply(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestSubstitutionLinesDeterministic(t *testing.T) {
	v := Default()

	first := v.SubstitutionLines()
	second := v.SubstitutionLines()
	if len(first) != len(v.Substitutions) {
		t.Fatalf("line count = %d, want %d", len(first), len(v.Substitutions))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("substitution lines not deterministic: %q vs %q", first[i], second[i])
		}
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := "structural_markers:\n  - coda\nsubstitutions:\n  blood: \"red glow\"\n  dagger: \"curved blade\"\npersona_cues:\n  - dancer\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write vocab file: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := v.StripStructuralMarkers("[Coda] final refrain line"); got != "final refrain line" {
		t.Errorf("overlay marker not applied: %q", got)
	}
	if got := v.Apply("blood and a dagger"); got != "red glow and a curved blade" {
		t.Errorf("overlay substitutions not applied: %q", got)
	}
	found := false
	for _, cue := range v.PersonaCues {
		if cue == "dancer" {
			found = true
		}
	}
	if !found {
		t.Error("overlay persona cue missing")
	}
	// Defaults survive the overlay
	if got := v.Apply("a gun on the table"); got != "a silhouetted prop on the table" {
		t.Errorf("default substitution lost: %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing vocabulary file")
	}
}
