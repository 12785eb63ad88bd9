// internal/prompt/assembler.go
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/verseforge/storyboardmv/internal/llm"
	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/utils"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// TextQuerier is the narrow collaborator contract used for the persona
// presence fallback question. Optional; a nil querier disables the fallback.
type TextQuerier interface {
	GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error)
}

// Input bundles everything the assembler needs for one scene.
type Input struct {
	Scene          int
	PresetKey      string // identifies the active style/persona preset
	Body           string // scene-specific storyboard text from the narrative pass
	Lyrics         string // mapped window lyrics, "" for a text-free scene
	ContinuityHint string // optional hint from the continuity engine
	Theme          models.ThemeContext
}

type cacheKey struct {
	scene     int
	presetKey string
}

// Assembler produces the final per-scene image prompt. It is session scoped:
// one assembler per generation run, with prompts memoized per scene and
// preset so repeated requests return byte-identical text.
type Assembler struct {
	vocab  *vocab.Vocabulary
	text   TextQuerier
	logger *utils.Logger
	cache  map[cacheKey]string
}

// NewAssembler creates a session-scoped assembler. The text querier may be
// nil; persona detection then relies on keyword cues alone.
func NewAssembler(v *vocab.Vocabulary, text TextQuerier) *Assembler {
	if v == nil {
		v = vocab.Default()
	}
	return &Assembler{
		vocab:  v,
		text:   text,
		logger: utils.GetLogger(),
		cache:  make(map[cacheKey]string),
	}
}

// Assemble builds the final prompt for one scene, in fixed order: continuity
// hint, theme prefix, scene body, persona block, lyric policy, keyword
// policy. Absent pieces are skipped without placeholders.
func (a *Assembler) Assemble(ctx context.Context, in Input) (string, error) {
	key := cacheKey{scene: in.Scene, presetKey: in.PresetKey}
	if cached, ok := a.cache[key]; ok {
		utils.GetMetrics().Inc(utils.MetricPromptCacheHits)
		return cached, nil
	}

	var parts []string

	if hint := strings.TrimSpace(in.ContinuityHint); hint != "" {
		parts = append(parts, hint)
	}
	if prefix := strings.TrimSpace(in.Theme.ThemePrefix); prefix != "" {
		parts = append(parts, prefix)
	}

	body := strings.TrimSpace(in.Body)
	if body != "" {
		parts = append(parts, body)
	}

	present, err := a.personaPresent(ctx, body, in.Theme)
	if err != nil {
		return "", err
	}
	if present {
		parts = append(parts, personaBlock(in.Theme))
	}

	if lyrics := strings.TrimSpace(in.Lyrics); lyrics != "" {
		parts = append(parts, a.lyricInstruction(lyrics, in.Theme.EmbedLyrics))
	}

	if in.Theme.EmbedKeywords && len(in.Theme.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf(
			"Work these visual keywords into the scene where natural: %s.",
			strings.Join(in.Theme.Keywords, ", ")))
	}

	assembled := a.vocab.Apply(strings.Join(parts, " "))
	a.cache[key] = assembled
	return assembled, nil
}

// Reset drops all memoized prompts, e.g. after the active preset changes.
func (a *Assembler) Reset() {
	a.cache = make(map[cacheKey]string)
}

// personaPresent decides whether the scene text puts the persona on screen.
// Explicit no-character markers suppress the block unconditionally. Otherwise
// the persona name or a role cue word decides directly; the collaborator is
// asked only when visual descriptors exist but no direct cue does.
func (a *Assembler) personaPresent(ctx context.Context, body string, theme models.ThemeContext) (bool, error) {
	if !theme.HasPersona() || body == "" {
		return false, nil
	}

	lower := strings.ToLower(body)
	for _, marker := range a.vocab.NoCharacterMarkers {
		if strings.Contains(lower, marker) {
			return false, nil
		}
	}

	if theme.PersonaName != "" && containsWord(lower, strings.ToLower(theme.PersonaName)) {
		return true, nil
	}
	for _, cue := range a.vocab.PersonaCues {
		if containsWord(lower, cue) {
			return true, nil
		}
	}

	if len(theme.PersonaDescriptors) == 0 || a.text == nil {
		return false, nil
	}
	return a.askPersonaPresence(ctx, body, theme)
}

// askPersonaPresence poses a yes/no question to the text collaborator. A
// failed or unparseable answer degrades to "not present" rather than failing
// the whole assembly.
func (a *Assembler) askPersonaPresence(ctx context.Context, body string, theme models.ThemeContext) (bool, error) {
	name := theme.PersonaName
	if name == "" {
		name = "the main performer"
	}

	utils.GetMetrics().Inc(utils.MetricTextCalls)
	resp, err := a.text.GenerateText(ctx, llm.TextRequest{
		Prompt: fmt.Sprintf(
			"Scene description:\n%s\n\nDoes this scene show %s on screen? Answer with a single word: yes or no.",
			body, name),
		SystemMessage: "You answer strictly yes or no.",
		MaxTokens:     5,
		Temperature:   0,
	})
	if err != nil {
		a.logger.Warnf("persona presence query failed, assuming absent: %v", err)
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Content))
	return strings.HasPrefix(answer, "yes"), nil
}

// personaBlock renders the persona identity description appended to scenes
// that feature the persona.
func personaBlock(theme models.ThemeContext) string {
	name := theme.PersonaName
	if name == "" {
		name = "The performer"
	}
	if len(theme.PersonaDescriptors) == 0 {
		return fmt.Sprintf("%s appears in this scene; keep their appearance consistent across scenes.", name)
	}
	return fmt.Sprintf("%s appears in this scene: %s. Keep this appearance consistent across scenes.",
		name, strings.Join(theme.PersonaDescriptors, ", "))
}

// lyricInstruction renders the policy-dependent lyric handling line. Banned
// terms are substituted later with the rest of the assembled prompt.
func (a *Assembler) lyricInstruction(lyrics string, embed bool) string {
	if embed {
		return fmt.Sprintf(
			"Embed the lyric text %q into the environment itself, such as signage, murals or objects, never as an overlay or subtitle.",
			lyrics)
	}
	return fmt.Sprintf(
		"Use the lyric %q only to set the mood; render no text anywhere in the frame.",
		lyrics)
}

// containsWord reports a whole-word, already-lowercased match.
func containsWord(haystack, word string) bool {
	for idx := 0; ; {
		rel := strings.Index(haystack[idx:], word)
		if rel < 0 {
			return false
		}
		start := idx + rel
		end := start + len(word)
		boundedLeft := start == 0 || !isWordByte(haystack[start-1])
		boundedRight := end == len(haystack) || !isWordByte(haystack[end])
		if boundedLeft && boundedRight {
			return true
		}
		idx = end
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '\''
}
