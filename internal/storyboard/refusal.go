// internal/storyboard/refusal.go
package storyboard

import (
	"strings"
)

// Phrases that mark a collaborator asking for confirmation, offering to split
// the work, or declining because of length. Checked only when the reply has
// no scene markers.
var refusalPhrases = []string{
	"would you like me to",
	"shall i continue",
	"should i continue",
	"do you want me to",
	"let me know if",
	"i can split",
	"in smaller batches",
	"in multiple parts",
	"too long for a single",
	"exceeds the length",
	"i cannot generate all",
	"i can't generate all",
	"unable to generate all",
	"due to length",
	"character limit",
	"token limit",
}

// DetectRefusal reports whether a reply is refusal language rather than
// storyboard content: refusal phrasing with zero scene markers present.
func DetectRefusal(reply string) bool {
	for _, line := range strings.Split(reply, "\n") {
		if _, _, ok := parseSceneMarker(strings.TrimSpace(line)); ok {
			return false
		}
	}

	lower := strings.ToLower(reply)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
