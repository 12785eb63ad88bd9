// internal/timing/windows.go
package timing

import (
	"math"
	"strings"

	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// Windows partitions a song duration into fixed-length scene windows.
// count = ceil(songDuration / secondsPerScene); windows are contiguous and
// non-overlapping, the last one truncated at the song end.
func Windows(songDuration, secondsPerScene float64) []models.SceneWindow {
	if songDuration <= 0 || secondsPerScene <= 0 {
		return nil
	}

	count := int(math.Ceil(songDuration / secondsPerScene))
	windows := make([]models.SceneWindow, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * secondsPerScene
		end := start + secondsPerScene
		if end > songDuration {
			end = songDuration
		}
		windows = append(windows, models.SceneWindow{
			Index:    i + 1,
			Start:    start,
			End:      end,
			Duration: end - start,
		})
	}
	return windows
}

// LyricsFor concatenates (space-joined) every segment whose start falls in
// [window.Start, window.End), excluding non-lyric structural markers. An
// empty result is a valid, expected state, not an error.
func LyricsFor(window models.SceneWindow, segments []models.LyricSegment, v *vocab.Vocabulary) string {
	if v == nil {
		v = vocab.Default()
	}

	var parts []string
	for _, seg := range segments {
		if seg.Start < window.Start || seg.Start >= window.End {
			continue
		}
		if v.IsNonLyric(seg.Text) {
			continue
		}
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// MapLyrics resolves the per-window lyric text for a full window list,
// keyed by window index.
func MapLyrics(windows []models.SceneWindow, segments []models.LyricSegment, v *vocab.Vocabulary) map[int]string {
	out := make(map[int]string, len(windows))
	for _, w := range windows {
		out[w.Index] = LyricsFor(w, segments, v)
	}
	return out
}
