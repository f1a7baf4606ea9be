package runner

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// PromptDiff renders a unified diff between the prompt sent at iteration from
// and the one that will be sent at iteration to.
func PromptDiff(old, new string, from, to int) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(old)),
		B:        difflib.SplitLines(ensureNewline(new)),
		FromFile: fmt.Sprintf("prompt@%d", from),
		ToFile:   fmt.Sprintf("prompt@%d", to),
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
