// internal/storyboard/parser.go
package storyboard

import (
	"fmt"
	"strings"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/models"
)

// parser states
type parseState int

const (
	seekingScene parseState = iota
	accumulatingPrompt
)

// ResponseParser turns a collaborator's free-text reply into SceneRecords.
// It is a line-oriented state machine: a scene-marker line flushes the scene
// accumulated so far and opens a new one; any other non-blank line appends to
// the current prompt buffer.
type ResponseParser struct {
	windows      map[int]models.SceneWindow
	windowLyrics map[int]string
	perScene     float64
}

// NewResponseParser creates a parser with the window context used to fill
// timestamps, durations and expected lyrics on flush.
func NewResponseParser(windows []models.SceneWindow, windowLyrics map[int]string, secondsPerScene float64) *ResponseParser {
	byIndex := make(map[int]models.SceneWindow, len(windows))
	for _, w := range windows {
		byIndex[w.Index] = w
	}
	if windowLyrics == nil {
		windowLyrics = map[int]string{}
	}
	return &ResponseParser{
		windows:      byIndex,
		windowLyrics: windowLyrics,
		perScene:     secondsPerScene,
	}
}

// Parse runs the state machine over the reply. A reply with zero scene
// markers is a parse failure; a reply whose highest scene falls short of the
// target is a valid, truncated result and is not an error here.
func (p *ResponseParser) Parse(reply string) ([]models.SceneRecord, error) {
	var records []models.SceneRecord

	state := seekingScene
	currentScene := 0
	currentDuration := ""
	var buffer []string

	flush := func() {
		if state != accumulatingPrompt {
			return
		}
		records = append(records, p.buildRecord(currentScene, currentDuration, buffer))
		buffer = buffer[:0]
	}

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)

		if scene, duration, ok := parseSceneMarker(trimmed); ok {
			flush()
			currentScene = scene
			currentDuration = duration
			state = accumulatingPrompt
			continue
		}

		if state == accumulatingPrompt && trimmed != "" {
			buffer = append(buffer, trimmed)
		}
	}
	flush()

	if len(records) == 0 {
		return nil, apperrors.NewParseError(fmt.Sprintf(
			"no scene markers found in reply (preview: %q)", preview(reply, 200)))
	}

	return records, nil
}

// buildRecord flushes one accumulated scene.
func (p *ResponseParser) buildRecord(scene int, duration string, buffer []string) models.SceneRecord {
	lyrics := p.windowLyrics[scene]

	lines := buffer
	if strings.TrimSpace(lyrics) == "" {
		// A text-free window stays text-free: drop residual lyric
		// declarations the collaborator echoed back.
		lines = stripLyricDeclarations(lines)
	}

	rec := models.SceneRecord{
		Scene:    scene,
		Lyrics:   lyrics,
		Prompt:   strings.Join(lines, "\n"),
		Duration: duration,
	}

	if w, ok := p.windows[scene]; ok {
		rec.Timestamp = w.TimestampLabel()
		if rec.Duration == "" {
			rec.Duration = w.DurationLabel()
		}
	} else {
		rec.Timestamp = models.FormatTimestamp(float64(scene-1) * p.perScene)
		if rec.Duration == "" {
			rec.Duration = fmt.Sprintf("%ds", int(p.perScene+0.5))
		}
	}

	return rec
}

// parseSceneMarker recognizes "SCENE <n>", "SCENE <n>: 6 seconds",
// "Scene <n> - 6s" and similar. Case-insensitive; the duration text after
// the separator is normalized to "Ns" when it carries a leading number.
func parseSceneMarker(line string) (int, string, bool) {
	const marker = "scene"
	if len(line) < len(marker)+2 {
		return 0, "", false
	}
	if !strings.EqualFold(line[:len(marker)], marker) {
		return 0, "", false
	}

	rest := line[len(marker):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	rest = strings.TrimLeft(rest, " \t")

	i := 0
	n := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		n = n*10 + int(rest[i]-'0')
		i++
	}
	if i == 0 || n == 0 {
		return 0, "", false
	}

	rest = strings.TrimSpace(rest[i:])
	if rest == "" {
		return n, "", true
	}
	if rest[0] != ':' && rest[0] != '-' && rest[0] != '(' {
		// "SCENE 3 opens with..." is prose, not a marker
		return 0, "", false
	}

	return n, normalizeDuration(strings.Trim(rest, ":-() \t")), true
}

// normalizeDuration turns "6 seconds", "6s", "6 sec" into "6s"; anything
// without a leading number is discarded.
func normalizeDuration(text string) string {
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i == 0 {
		return ""
	}
	return text[:i] + "s"
}

// stripLyricDeclarations removes lines that look like "lyrics: ..." echoes.
func stripLyricDeclarations(lines []string) []string {
	kept := lines[:0]
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "lyrics:") || strings.HasPrefix(lower, "lyric:") ||
			strings.HasPrefix(lower, "(no lyrics)") {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
