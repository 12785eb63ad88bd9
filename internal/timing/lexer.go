// internal/timing/lexer.go
package timing

import (
	"strings"
)

// The transcript lexer recognizes the timestamp dialects seen in the wild,
// in priority order:
//
//	start=end=text        explicit start/end pair
//	M:SS=text             single timestamp, end inferred from the next entry
//	[M:SS] text [M:SS.mmm] ...   bracketed inline markers, () also accepted
//	plain text            no timestamps at all
//
// One dialect is assumed dominant per transcript; lines that do not match it
// fall back to the plain bucket.

type lineKind int

const (
	kindBlank lineKind = iota
	kindPair
	kindSingle
	kindBracket
	kindPlain
)

// rawEntry is one lexed transcript line before end-time inference.
type rawEntry struct {
	kind  lineKind
	start float64
	end   float64 // only set for kindPair
	text  string
}

// scanClock reads a clock value ("M:SS", "MM:SS.mmm", "H:MM:SS") starting at
// pos. Returns the value in seconds, the index just past it, and whether a
// well-formed clock was present.
func scanClock(s string, pos int) (float64, int, bool) {
	i := pos
	var parts []int
	var frac float64

	digits := func() (int, bool) {
		start := i
		v := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			v = v*10 + int(s[i]-'0')
			i++
		}
		return v, i > start
	}

	v, ok := digits()
	if !ok {
		return 0, pos, false
	}
	parts = append(parts, v)

	for len(parts) < 3 && i < len(s) && s[i] == ':' {
		i++
		v, ok = digits()
		if !ok {
			return 0, pos, false
		}
		parts = append(parts, v)
	}

	if len(parts) < 2 {
		return 0, pos, false
	}

	if i < len(s) && s[i] == '.' {
		i++
		scale := 0.1
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			frac += float64(s[i]-'0') * scale
			scale /= 10
			i++
		}
		if i == start {
			return 0, pos, false
		}
	}

	seconds := 0.0
	for _, p := range parts {
		seconds = seconds*60 + float64(p)
	}
	return seconds + frac, i, true
}

// lexLine classifies a single transcript line.
func lexLine(line string) rawEntry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return rawEntry{kind: kindBlank}
	}

	// Pair and single dialects: clock '=' [clock '='] text
	if start, next, ok := scanClock(trimmed, 0); ok && next < len(trimmed) && trimmed[next] == '=' {
		rest := trimmed[next+1:]
		if end, n2, ok2 := scanClock(rest, 0); ok2 && n2 < len(rest) && rest[n2] == '=' {
			return rawEntry{
				kind:  kindPair,
				start: start,
				end:   end,
				text:  strings.TrimSpace(rest[n2+1:]),
			}
		}
		return rawEntry{
			kind:  kindSingle,
			start: start,
			text:  strings.TrimSpace(rest),
		}
	}

	if hasBracketClock(trimmed) {
		return rawEntry{kind: kindBracket, text: trimmed}
	}

	return rawEntry{kind: kindPlain, text: trimmed}
}

// hasBracketClock reports whether the line contains a [M:SS] or (M:SS) marker.
func hasBracketClock(line string) bool {
	for i := 0; i < len(line); i++ {
		if line[i] != '[' && line[i] != '(' {
			continue
		}
		closer := byte(']')
		if line[i] == '(' {
			closer = ')'
		}
		if _, next, ok := scanClock(line, i+1); ok && next < len(line) && line[next] == closer {
			return true
		}
	}
	return false
}

// lexBracketLine splits a bracket-dialect line into one entry per marker.
// Text before the first marker is dropped.
func lexBracketLine(line string) []rawEntry {
	var entries []rawEntry
	i := 0
	current := -1 // index into entries of the open marker

	for i < len(line) {
		c := line[i]
		if c == '[' || c == '(' {
			closer := byte(']')
			if c == '(' {
				closer = ')'
			}
			if seconds, next, ok := scanClock(line, i+1); ok && next < len(line) && line[next] == closer {
				entries = append(entries, rawEntry{kind: kindBracket, start: seconds})
				current = len(entries) - 1
				i = next + 1
				continue
			}
		}
		if current >= 0 {
			entries[current].text += string(c)
		}
		i++
	}

	kept := entries[:0]
	for _, e := range entries {
		e.text = strings.TrimSpace(e.text)
		kept = append(kept, e)
	}
	return kept
}
