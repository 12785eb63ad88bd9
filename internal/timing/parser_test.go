// internal/timing/parser_test.go
package timing

import (
	"math"
	"strings"
	"testing"

	"github.com/verseforge/storyboardmv/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestParsePairDialect(t *testing.T) {
	p := NewParser(nil, 2)

	segs := p.Parse("0:05=00:06=hello\n0:06=00:07=world", 10, 6)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}

	want := []models.LyricSegment{
		{Start: 5, End: 6, Text: "hello"},
		{Start: 6, End: 7, Text: "world"},
	}
	for i, w := range want {
		if !almostEqual(segs[i].Start, w.Start) || !almostEqual(segs[i].End, w.End) || segs[i].Text != w.Text {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], w)
		}
	}
}

func TestParseSingleDialectInfersEnds(t *testing.T) {
	p := NewParser(nil, 2)

	segs := p.Parse("0:10=first line\n0:20=second line", 35, 6)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if !almostEqual(segs[0].End, 20) {
		t.Errorf("first segment end = %v, want next start 20", segs[0].End)
	}
	if !almostEqual(segs[1].End, 35) {
		t.Errorf("last segment end = %v, want song duration 35", segs[1].End)
	}
}

func TestParseBracketDialect(t *testing.T) {
	p := NewParser(nil, 2)

	raw := "[0:05] hello there [0:12.500] still here\n(0:20) closing words"
	segs := p.Parse(raw, 30, 6)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if !almostEqual(segs[1].Start, 12.5) {
		t.Errorf("fractional timestamp start = %v, want 12.5", segs[1].Start)
	}
	if segs[2].Text != "closing words" {
		t.Errorf("paren marker text = %q", segs[2].Text)
	}
}

func TestParseNoTimestampsDistributesEvenly(t *testing.T) {
	p := NewParser(nil, 2)

	segs := p.Parse("line one\nline two\nline three\nline four", 40, 6)
	if len(segs) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if !almostEqual(seg.Start, float64(i)*10) || !almostEqual(seg.End, float64(i+1)*10) {
			t.Errorf("segment %d = [%v,%v), want [%v,%v)", i, seg.Start, seg.End, i*10, (i+1)*10)
		}
	}
}

func TestParseMixedLinesFallToPlainBucket(t *testing.T) {
	p := NewParser(nil, 2)

	// Dominant dialect is single-timestamp; the untimed line carries no timing.
	segs := p.Parse("0:05=timed one\nuntimed interjection\n0:15=timed two", 30, 6)
	if len(segs) != 2 {
		t.Fatalf("expected 2 timed segments, got %d: %+v", len(segs), segs)
	}
	for _, seg := range segs {
		if strings.Contains(seg.Text, "interjection") {
			t.Errorf("untimed line leaked into timed segments: %+v", seg)
		}
	}
}

func TestParseStripsStructuralMarkers(t *testing.T) {
	p := NewParser(nil, 2)

	segs := p.Parse("0:05=[Chorus] hold me now\n0:10=[Verse 2]\n0:12=steady lights", 20, 6)
	if len(segs) != 2 {
		t.Fatalf("expected marker-only line dropped, got %d segments: %+v", len(segs), segs)
	}
	if segs[0].Text != "hold me now" {
		t.Errorf("marker not stripped: %q", segs[0].Text)
	}
}

func TestParseKeepsInstrumentalMarkerSegment(t *testing.T) {
	p := NewParser(nil, 2)

	segs := p.Parse("0:00=(instrumental)\n0:08=first words", 20, 6)
	if len(segs) != 2 {
		t.Fatalf("expected instrumental marker kept as segment, got %d", len(segs))
	}
	if segs[0].Text != "(instrumental)" {
		t.Errorf("marker text = %q, want preserved verbatim", segs[0].Text)
	}
}

func TestFilterSparseTrailingFragments(t *testing.T) {
	p := NewParser(nil, 2)

	segs := []models.LyricSegment{
		{Start: 0, End: 4, Text: "a full opening line of lyrics"},
		{Start: 5, End: 8, Text: "and a second one"},
		// 30s gap, two words: transcription tail artifact
		{Start: 38, End: 39, Text: "oh yeah"},
		// gap measured from the last kept entry, so this one is judged
		// against 8s, not 39s
		{Start: 45, End: 50, Text: "a real closing line returns here"},
	}

	kept := p.filterSparseTrailingFragments(segs, 6)
	if len(kept) != 3 {
		t.Fatalf("expected 3 kept segments, got %d: %+v", len(kept), kept)
	}
	for _, seg := range kept {
		if seg.Text == "oh yeah" {
			t.Errorf("sparse fragment survived the filter")
		}
	}
}

func TestFilterSparseKeepsLongFragments(t *testing.T) {
	p := NewParser(nil, 2)

	segs := []models.LyricSegment{
		{Start: 0, End: 4, Text: "opening line"},
		{Start: 40, End: 44, Text: "three whole words"},
	}

	kept := p.filterSparseTrailingFragments(segs, 6)
	if len(kept) != 2 {
		t.Fatalf("fragment above the word limit must be kept, got %d segments", len(kept))
	}
}

func TestParseEmptyTranscript(t *testing.T) {
	p := NewParser(nil, 2)

	if segs := p.Parse("   \n\n  ", 30, 6); segs != nil {
		t.Errorf("expected nil for blank transcript, got %+v", segs)
	}
	if segs := p.Parse("0:05=hello", 0, 6); segs != nil {
		t.Errorf("expected nil for zero duration, got %+v", segs)
	}
}

func TestScanClockDialects(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0:05", 5, true},
		{"00:06", 6, true},
		{"1:02", 62, true},
		{"10:00", 600, true},
		{"1:02:03", 3723, true},
		{"0:12.500", 12.5, true},
		{"12", 0, false},
		{"a:05", 0, false},
		{"0:", 0, false},
	}

	for _, tc := range cases {
		got, _, ok := scanClock(tc.in, 0)
		if ok != tc.ok {
			t.Errorf("scanClock(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && !almostEqual(got, tc.want) {
			t.Errorf("scanClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
