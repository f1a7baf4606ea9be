package completion

import (
	"regexp"
	"strings"
)

// Marker is the literal token a backend prints alone on its last line.
const Marker = "DONE"

var lineBreak = regexp.MustCompile(`\r?\n`)

// DetectMarker reports done when the last non-blank line, trimmed, is exactly
// Marker. Anything else, including an empty text, is continue.
func DetectMarker(text string) Verdict {
	lines := lineBreak.Split(text, -1)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if line == Marker {
			return Verdict{Status: StatusDone}
		}
		break
	}
	return Verdict{Status: StatusContinue}
}
