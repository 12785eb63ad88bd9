// internal/vocab/vocab.go
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the fixed word lists the engine matches against: section
// labels stripped from transcripts, markers that classify an entry as
// non-lyric content, content-safety substitutions, and the persona cue words
// used by prompt assembly. Ships with compiled-in defaults; a YAML file can
// extend or override them.
type Vocabulary struct {
	// Section labels such as "Verse" or "Chorus", stripped from entry text
	// and never persisted as lyric content.
	StructuralMarkers []string `yaml:"structural_markers"`

	// Entries that are markers rather than sung text, e.g. "instrumental".
	NonLyricMarkers []string `yaml:"non_lyric_markers"`

	// Banned terms mapped to safe synonyms, applied to outgoing instructions.
	Substitutions map[string]string `yaml:"substitutions"`

	// Scene-text markers that unconditionally suppress the persona block.
	NoCharacterMarkers []string `yaml:"no_character_markers"`

	// Generic words that indicate the persona is on screen.
	PersonaCues []string `yaml:"persona_cues"`
}

// Default returns the compiled-in vocabulary.
func Default() *Vocabulary {
	return &Vocabulary{
		StructuralMarkers: []string{
			"intro", "verse", "pre-chorus", "chorus", "post-chorus",
			"bridge", "hook", "refrain", "interlude", "breakdown",
			"drop", "solo", "outro", "ending", "instrumental", "fade out",
		},
		NonLyricMarkers: []string{
			"instrumental", "music", "solo", "intro", "outro",
			"interlude", "break", "silence", "applause",
		},
		Substitutions: map[string]string{
			"blood":   "crimson light",
			"gun":     "silhouetted prop",
			"knife":   "glinting metal",
			"corpse":  "fallen figure",
			"naked":   "silhouetted",
			"drugs":   "scattered pills of glass",
			"suicide": "a fading shadow",
		},
		NoCharacterMarkers: []string{
			"no characters", "no people", "no persons", "empty scene",
			"nobody in frame", "unpopulated",
		},
		PersonaCues: []string{
			"singer", "artist", "performer", "vocalist", "musician",
			"protagonist", "frontman", "frontwoman",
		},
	}
}

// Load reads a YAML vocabulary file and merges it over the defaults. Lists
// are appended, substitutions are overlaid key by key.
func Load(path string) (*Vocabulary, error) {
	base := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var overlay Vocabulary
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}

	base.StructuralMarkers = append(base.StructuralMarkers, overlay.StructuralMarkers...)
	base.NonLyricMarkers = append(base.NonLyricMarkers, overlay.NonLyricMarkers...)
	base.NoCharacterMarkers = append(base.NoCharacterMarkers, overlay.NoCharacterMarkers...)
	base.PersonaCues = append(base.PersonaCues, overlay.PersonaCues...)
	for term, replacement := range overlay.Substitutions {
		base.Substitutions[term] = replacement
	}

	return base, nil
}

// IsNonLyric reports whether an entry is a structural marker rather than sung
// text: the whole entry, stripped of brackets, matches the marker vocabulary.
func (v *Vocabulary) IsNonLyric(text string) bool {
	inner := strings.TrimSpace(text)
	inner = strings.Trim(inner, "[]()")
	inner = strings.TrimSpace(strings.ToLower(inner))
	if inner == "" {
		return true
	}

	for _, marker := range v.NonLyricMarkers {
		if inner == marker {
			return true
		}
	}
	return false
}

// StripStructuralMarkers removes bracketed section labels such as "[Chorus]"
// or "(Verse 2)" from a line of transcript text.
func (v *Vocabulary) StripStructuralMarkers(line string) string {
	var out strings.Builder
	rest := line

	for {
		open := strings.IndexAny(rest, "[(")
		if open < 0 {
			out.WriteString(rest)
			break
		}

		var closer byte = ']'
		if rest[open] == '(' {
			closer = ')'
		}
		end := strings.IndexByte(rest[open:], closer)
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += open

		inner := rest[open+1 : end]
		if v.isStructuralLabel(inner) {
			out.WriteString(rest[:open])
		} else {
			out.WriteString(rest[:end+1])
		}
		rest = rest[end+1:]
	}

	return strings.Join(strings.Fields(out.String()), " ")
}

// isStructuralLabel matches "Chorus", "Verse 2", "Pre-Chorus x2" etc.
func (v *Vocabulary) isStructuralLabel(inner string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(inner)))
	if len(fields) == 0 || len(fields) > 3 {
		return false
	}

	for _, marker := range v.StructuralMarkers {
		if fields[0] == marker {
			return true
		}
	}
	return false
}

// Apply replaces banned terms with their safe synonyms, case-insensitively,
// on word boundaries.
func (v *Vocabulary) Apply(text string) string {
	for _, term := range v.sortedTerms() {
		text = replaceWord(text, term, v.Substitutions[term])
	}
	return text
}

// SubstitutionLines renders the substitution table as deterministic
// instruction lines for the request builder.
func (v *Vocabulary) SubstitutionLines() []string {
	terms := v.sortedTerms()
	lines := make([]string, 0, len(terms))
	for _, term := range terms {
		lines = append(lines, fmt.Sprintf("%q -> %q", term, v.Substitutions[term]))
	}
	return lines
}

// sortedTerms returns substitution keys in stable order; longer terms first
// so overlapping terms replace outside-in.
func (v *Vocabulary) sortedTerms() []string {
	terms := make([]string, 0, len(v.Substitutions))
	for term := range v.Substitutions {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return terms
}

// replaceWord substitutes whole-word, case-insensitive occurrences.
func replaceWord(text, term, replacement string) string {
	lower := strings.ToLower(text)
	term = strings.ToLower(term)

	var out strings.Builder
	for {
		idx := strings.Index(lower, term)
		if idx < 0 {
			out.WriteString(text)
			break
		}

		end := idx + len(term)
		boundedLeft := idx == 0 || !isWordByte(lower[idx-1])
		boundedRight := end == len(lower) || !isWordByte(lower[end])

		if boundedLeft && boundedRight {
			out.WriteString(text[:idx])
			out.WriteString(replacement)
		} else {
			out.WriteString(text[:end])
		}

		text = text[end:]
		lower = lower[end:]
	}

	return out.String()
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '\''
}
