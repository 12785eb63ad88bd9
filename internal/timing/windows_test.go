// internal/timing/windows_test.go
package timing

import (
	"math"
	"testing"

	"github.com/verseforge/storyboardmv/internal/models"
)

func TestWindowsCoverage(t *testing.T) {
	cases := []struct {
		duration float64
		perScene float64
		count    int
	}{
		{20, 6, 4},
		{18, 6, 3},
		{1, 6, 1},
		{181, 6, 31},
		{300, 7.5, 40},
	}

	for _, tc := range cases {
		windows := Windows(tc.duration, tc.perScene)
		if len(windows) != tc.count {
			t.Errorf("Windows(%v, %v) count = %d, want %d", tc.duration, tc.perScene, len(windows), tc.count)
			continue
		}

		// Contiguous, non-overlapping, indexed from 1
		prevEnd := 0.0
		for i, w := range windows {
			if w.Index != i+1 {
				t.Errorf("window %d index = %d", i, w.Index)
			}
			if math.Abs(w.Start-prevEnd) > 1e-9 {
				t.Errorf("window %d start = %v, want %v (contiguous)", i, w.Start, prevEnd)
			}
			prevEnd = w.End
		}
		if math.Abs(prevEnd-tc.duration) > 1e-9 {
			t.Errorf("last window end = %v, want %v", prevEnd, tc.duration)
		}
	}
}

func TestWindowsScenarioB(t *testing.T) {
	windows := Windows(20, 6)
	want := [][2]float64{{0, 6}, {6, 12}, {12, 18}, {18, 20}}
	if len(windows) != len(want) {
		t.Fatalf("expected %d windows, got %d", len(want), len(windows))
	}
	for i, w := range windows {
		if w.Start != want[i][0] || w.End != want[i][1] {
			t.Errorf("window %d = [%v,%v), want [%v,%v)", i+1, w.Start, w.End, want[i][0], want[i][1])
		}
	}
	if windows[3].Duration != 2 {
		t.Errorf("truncated window duration = %v, want 2", windows[3].Duration)
	}
}

func TestWindowsInvalidInput(t *testing.T) {
	if Windows(0, 6) != nil {
		t.Error("expected nil windows for zero duration")
	}
	if Windows(20, 0) != nil {
		t.Error("expected nil windows for zero scene length")
	}
}

func TestLyricsForMapsByStartTime(t *testing.T) {
	segments := []models.LyricSegment{
		{Start: 0, End: 3, Text: "first"},
		{Start: 5.9, End: 7, Text: "second"},
		{Start: 6, End: 9, Text: "third"},
		{Start: 11, End: 13, Text: "fourth"},
	}
	windows := Windows(12, 6)

	if got := LyricsFor(windows[0], segments, nil); got != "first second" {
		t.Errorf("window 1 lyrics = %q, want %q", got, "first second")
	}
	if got := LyricsFor(windows[1], segments, nil); got != "third fourth" {
		t.Errorf("window 2 lyrics = %q, want %q", got, "third fourth")
	}
}

func TestLyricsForExcludesNonLyricMarkers(t *testing.T) {
	segments := []models.LyricSegment{
		{Start: 0, End: 3, Text: "(instrumental)"},
		{Start: 4, End: 5, Text: "real words"},
	}
	windows := Windows(6, 6)

	if got := LyricsFor(windows[0], segments, nil); got != "real words" {
		t.Errorf("lyrics = %q, want marker excluded", got)
	}
}

func TestLyricsForEmptyWindowIsValid(t *testing.T) {
	windows := Windows(12, 6)
	if got := LyricsFor(windows[1], []models.LyricSegment{{Start: 0, End: 2, Text: "early"}}, nil); got != "" {
		t.Errorf("expected empty lyrics, got %q", got)
	}
}

func TestMapLyricsIdempotent(t *testing.T) {
	segments := []models.LyricSegment{
		{Start: 0, End: 3, Text: "alpha"},
		{Start: 7, End: 9, Text: "beta"},
		{Start: 13, End: 15, Text: "gamma delta"},
	}
	windows := Windows(18, 6)

	first := MapLyrics(windows, segments, nil)
	second := MapLyrics(windows, segments, nil)

	if len(first) != len(windows) {
		t.Fatalf("mapped %d windows, want %d", len(first), len(windows))
	}
	for idx, text := range first {
		if second[idx] != text {
			t.Errorf("window %d: %q != %q on second mapping", idx, text, second[idx])
		}
	}
}
