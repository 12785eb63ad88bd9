// internal/timing/parser.go
package timing

import (
	"sort"
	"strings"

	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// Parser normalizes raw lyric transcripts into ordered LyricSegments.
type Parser struct {
	vocab           *vocab.Vocabulary
	sparseWordLimit int
}

// NewParser creates a transcript parser. sparseWordLimit bounds the word
// count of trailing fragments eligible for the sparse filter.
func NewParser(v *vocab.Vocabulary, sparseWordLimit int) *Parser {
	if v == nil {
		v = vocab.Default()
	}
	if sparseWordLimit <= 0 {
		sparseWordLimit = 2
	}
	return &Parser{vocab: v, sparseWordLimit: sparseWordLimit}
}

// Parse lexes the transcript, picks the dominant timestamp dialect, infers
// end times, and applies the sparse-trailing-fragment filter. The result is
// sorted by start time and immutable thereafter.
func (p *Parser) Parse(raw string, songDuration, secondsPerScene float64) []models.LyricSegment {
	if strings.TrimSpace(raw) == "" || songDuration <= 0 {
		return nil
	}

	lines := strings.Split(raw, "\n")
	lexed := make([]rawEntry, 0, len(lines))
	counts := map[lineKind]int{}
	for _, line := range lines {
		entry := lexLine(line)
		if entry.kind == kindBlank {
			continue
		}
		lexed = append(lexed, entry)
		counts[entry.kind]++
	}
	if len(lexed) == 0 {
		return nil
	}

	dominant := dominantKind(counts)

	var entries []rawEntry
	if dominant == kindPlain {
		// No timestamps at all: distribute lines evenly across the duration.
		entries = distributeEvenly(lexed, songDuration)
	} else {
		for _, e := range lexed {
			switch {
			case e.kind == dominant && dominant == kindBracket:
				entries = append(entries, lexBracketLine(e.text)...)
			case e.kind == dominant:
				entries = append(entries, e)
			default:
				// Mixed-format line: falls to the no-timestamp bucket, which
				// carries no timing once a dominant dialect exists.
			}
		}
	}

	entries = p.cleanText(entries)

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].start < entries[j].start })

	segments := inferEnds(entries, songDuration)
	return p.filterSparseTrailingFragments(segments, secondsPerScene)
}

// dominantKind picks the most frequent timestamped dialect; plain wins only
// when no timestamped line exists.
func dominantKind(counts map[lineKind]int) lineKind {
	best := kindPlain
	bestCount := 0
	for _, kind := range []lineKind{kindPair, kindSingle, kindBracket} {
		if counts[kind] > bestCount {
			best = kind
			bestCount = counts[kind]
		}
	}
	return best
}

// distributeEvenly assigns each plain line an equal share of the duration.
func distributeEvenly(lexed []rawEntry, songDuration float64) []rawEntry {
	share := songDuration / float64(len(lexed))
	out := make([]rawEntry, 0, len(lexed))
	for i, e := range lexed {
		out = append(out, rawEntry{
			kind:  kindPair, // even distribution carries explicit ends
			start: float64(i) * share,
			end:   float64(i+1) * share,
			text:  e.text,
		})
	}
	return out
}

// cleanText strips structural section labels from entry text. A line that is
// nothing but a marker (e.g. "(instrumental)") keeps its original text so the
// window mapper can classify and exclude it.
func (p *Parser) cleanText(entries []rawEntry) []rawEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.text == "" {
			continue
		}
		stripped := p.vocab.StripStructuralMarkers(e.text)
		if stripped == "" {
			if !p.vocab.IsNonLyric(e.text) {
				continue
			}
			// marker-only entry, preserved verbatim
		} else {
			e.text = stripped
		}
		kept = append(kept, e)
	}
	return kept
}

// inferEnds converts raw entries into segments: a pair entry keeps its end,
// every other entry ends at the next entry's start, the last at song end.
func inferEnds(entries []rawEntry, songDuration float64) []models.LyricSegment {
	segments := make([]models.LyricSegment, 0, len(entries))
	for i, e := range entries {
		end := e.end
		if e.kind != kindPair {
			if i+1 < len(entries) {
				end = entries[i+1].start
			} else {
				end = songDuration
			}
		}
		if end < e.start {
			end = e.start
		}
		segments = append(segments, models.LyricSegment{
			Start: e.start,
			End:   end,
			Text:  e.text,
		})
	}
	return segments
}

// filterSparseTrailingFragments drops an entry when the gap since the last
// kept entry exceeds one scene duration and the entry has at most
// sparseWordLimit words. The gap resets after every kept entry, so there is
// no fixed global cutoff.
func (p *Parser) filterSparseTrailingFragments(segments []models.LyricSegment, secondsPerScene float64) []models.LyricSegment {
	if secondsPerScene <= 0 || len(segments) == 0 {
		return segments
	}

	kept := make([]models.LyricSegment, 0, len(segments))
	lastKeptEnd := 0.0
	for _, seg := range segments {
		gap := seg.Start - lastKeptEnd
		if gap > secondsPerScene && seg.WordCount() <= p.sparseWordLimit {
			continue
		}
		kept = append(kept, seg)
		lastKeptEnd = seg.End
	}
	return kept
}
