// Package completion decides, from a backend's free-form answer, whether a
// task is done, should continue, or produced an unusable payload.
//
// Both detection modes are pure functions of the input text.
package completion

import "fmt"

// Mode selects how a response is parsed.
type Mode string

const (
	ModeMarker Mode = "marker"
	ModeJSON   Mode = "json"
)

// Modes lists the accepted modes in display order.
var Modes = []Mode{ModeMarker, ModeJSON}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMarker, ModeJSON:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("completion mode must be marker or json, got %q", s)
	}
}

// Status is the outcome of a detection.
type Status string

const (
	StatusDone     Status = "done"
	StatusContinue Status = "continue"
	StatusError    Status = "error"
)

// ReasonInvalidJSON is reported when no candidate object satisfies the schema.
const ReasonInvalidJSON = "invalid-json"

// Verdict is the classification of one response.
// Summary and Next are only ever set in JSON mode.
type Verdict struct {
	Status  Status `json:"status"`
	Summary string `json:"summary,omitempty"`
	Next    string `json:"next,omitempty"`
	Reason  string `json:"error,omitempty"`
}

// Detect classifies text under the given mode. Unknown modes fall back to
// marker detection; callers validate the mode with ParseMode first.
func Detect(text string, mode Mode) Verdict {
	if mode == ModeJSON {
		return DetectJSON(text)
	}
	return DetectMarker(text)
}
