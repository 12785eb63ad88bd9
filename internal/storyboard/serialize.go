// internal/storyboard/serialize.go
package storyboard

import (
	"fmt"
	"strings"

	"github.com/verseforge/storyboardmv/internal/models"
)

// SerializeScenes renders records back into the "SCENE n: Ns" text form.
// Re-parsing the output with the same window context yields an equal list,
// modulo whitespace normalization. Audit artifacts use this form.
func SerializeScenes(records []models.SceneRecord) string {
	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		if rec.Duration != "" {
			fmt.Fprintf(&sb, "SCENE %d: %s\n", rec.Scene, rec.Duration)
		} else {
			fmt.Fprintf(&sb, "SCENE %d\n", rec.Scene)
		}
		sb.WriteString(rec.Prompt)
		sb.WriteString("\n")
	}
	return sb.String()
}
