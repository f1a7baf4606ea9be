package completion

import (
	"encoding/json"
	"regexp"
)

// jsonObject matches brace-delimited objects with at most one nesting level.
var jsonObject = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// DetectJSON scans text for completion objects and returns the last one that
// satisfies the schema:
//
//	{"status": "done"|"continue"|"error", "summary"?: string, "next"?: string}
//
// Extra fields are ignored. A type mismatch on a known field disqualifies the
// candidate and scanning moves on to the previous one.
func DetectJSON(text string) Verdict {
	candidates := jsonObject.FindAllString(text, -1)
	for i := len(candidates) - 1; i >= 0; i-- {
		if v, ok := parseCandidate(candidates[i]); ok {
			return v
		}
	}
	return Verdict{Status: StatusError, Reason: ReasonInvalidJSON}
}

func parseCandidate(s string) (Verdict, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return Verdict{}, false
	}

	status, ok := obj["status"].(string)
	if !ok {
		return Verdict{}, false
	}
	switch Status(status) {
	case StatusDone, StatusContinue, StatusError:
	default:
		return Verdict{}, false
	}

	v := Verdict{Status: Status(status)}
	if v.Summary, ok = optionalString(obj, "summary"); !ok {
		return Verdict{}, false
	}
	if v.Next, ok = optionalString(obj, "next"); !ok {
		return Verdict{}, false
	}
	return v, true
}

// optionalString returns the field value, or "" when absent. A present field
// of any other type, null included, is a mismatch.
func optionalString(obj map[string]any, key string) (string, bool) {
	raw, present := obj[key]
	if !present {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}
