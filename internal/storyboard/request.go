// internal/storyboard/request.go
package storyboard

import (
	"fmt"
	"strings"

	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// SystemMessage frames every storyboard request to the narrative collaborator.
const SystemMessage = "You are a storyboard writer for music videos. You describe short, " +
	"filmable scenes with concrete visual detail and you follow the output format exactly."

// RequestBuilder composes the instruction text for one storyboard batch. The
// output is deterministic for a given batch/theme pair so audit artifacts
// replay byte for byte.
type RequestBuilder struct {
	vocab *vocab.Vocabulary
}

// NewRequestBuilder creates a request builder over a vocabulary.
func NewRequestBuilder(v *vocab.Vocabulary) *RequestBuilder {
	if v == nil {
		v = vocab.Default()
	}
	return &RequestBuilder{vocab: v}
}

// Build renders the batch instruction.
func (b *RequestBuilder) Build(batch models.StoryboardBatch) string {
	var sb strings.Builder

	if batch.StartScene == 1 && batch.EndScene == batch.TotalScenes {
		fmt.Fprintf(&sb, "Write a music video storyboard with exactly %d scenes.\n", batch.TotalScenes)
	} else {
		fmt.Fprintf(&sb, "Continue a music video storyboard: write scenes %d through %d of %d total. "+
			"Earlier scenes already exist; do not repeat them.\n",
			batch.StartScene, batch.EndScene, batch.TotalScenes)
	}

	theme := batch.Theme
	if theme.StyleText != "" {
		fmt.Fprintf(&sb, "Musical style: %s\n", theme.StyleText)
	}
	if theme.ThemePrefix != "" {
		fmt.Fprintf(&sb, "Begin every scene description with this theme prefix: %q\n", theme.ThemePrefix)
	}
	if theme.HasPersona() {
		name := theme.PersonaName
		if name == "" {
			name = "the featured artist"
		}
		fmt.Fprintf(&sb, "%s should appear in roughly %d%% of the scenes, never in two consecutive scenes.\n",
			name, theme.PersonaPresencePct)
	}
	if theme.SetupCount > 0 {
		fmt.Fprintf(&sb, "Use at most %d distinct visual setups (a location with its lighting) "+
			"and rotate among them; do not invent a new setting for every scene.\n", theme.SetupCount)
	}

	if theme.EmbedLyrics {
		sb.WriteString("Where a scene has lyrics, work their words into the environment itself " +
			"(signs, objects, shapes), never as an overlay or subtitle.\n")
	} else {
		sb.WriteString("Use lyrics only to set the mood of a scene; no scene may render any text.\n")
	}

	if lines := b.vocab.SubstitutionLines(); len(lines) > 0 {
		sb.WriteString("Replace these terms wherever they would appear: ")
		sb.WriteString(strings.Join(lines, "; "))
		sb.WriteString(".\n")
	}

	sb.WriteString("\nScene timing and lyrics:\n")
	for _, w := range batch.Windows {
		if w.Index < batch.StartScene || w.Index > batch.EndScene {
			continue
		}
		lyric := b.vocab.Apply(batch.WindowLyric[w.Index])
		if strings.TrimSpace(lyric) == "" {
			fmt.Fprintf(&sb, "SCENE %d (%s, %s): (no lyrics)\n", w.Index, w.TimestampLabel(), w.DurationLabel())
		} else {
			fmt.Fprintf(&sb, "SCENE %d (%s, %s): lyrics: %s\n", w.Index, w.TimestampLabel(), w.DurationLabel(), lyric)
		}
	}

	sb.WriteString("\nReply with every requested scene in exactly this format:\n")
	sb.WriteString("SCENE <number>: <duration> seconds\n")
	sb.WriteString("<two or three sentences describing the shot>\n")

	return sb.String()
}
