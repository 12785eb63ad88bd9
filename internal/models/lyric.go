// internal/models/lyric.go
package models

import (
	"fmt"
	"strings"
)

// LyricSegment is a timed span of transcript text. Segments are ordered by
// Start; End is either the next segment's start or the song duration for the
// last segment.
type LyricSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// WordCount returns the number of whitespace-separated words in the segment.
func (s LyricSegment) WordCount() int {
	return len(strings.Fields(s.Text))
}

// SceneWindow is a fixed-duration time slice of the song with a 1-based index.
type SceneWindow struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// TimestampLabel renders the window start as "M:SS".
func (w SceneWindow) TimestampLabel() string {
	return FormatTimestamp(w.Start)
}

// DurationLabel renders the window duration as "Ns".
func (w SceneWindow) DurationLabel() string {
	return fmt.Sprintf("%ds", int(w.Duration+0.5))
}

// FormatTimestamp renders seconds as "M:SS" (minutes are not zero padded).
func FormatTimestamp(seconds float64) string {
	total := int(seconds + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
