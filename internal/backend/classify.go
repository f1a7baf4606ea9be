package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"
)

var (
	unauthenticatedPattern = regexp.MustCompile(`(?i)\b(unauthori[sz]ed|forbidden|login|log in|not\s+logged|auth(entication)?|api\s*key|openai_api_key|token)\b`)
	missingPattern         = regexp.MustCompile(`(?i)\b(command\s+not\s+found|not\s+recognized\s+as\s+an\s+internal\s+or\s+external\s+command|no\s+such\s+file\s+or\s+directory|cannot\s+find\s+the\s+file)\b`)
)

// LooksUnauthenticated reports whether probe output mentions a login or
// credential problem.
func LooksUnauthenticated(output string) bool {
	return unauthenticatedPattern.MatchString(output)
}

// LooksMissing reports whether probe output says the command does not exist.
// Some shells and wrappers exit non-zero with such a message instead of
// failing the spawn.
func LooksMissing(output string) bool {
	return missingPattern.MatchString(output)
}

// Classify turns the result of a version probe into a verdict. spawnErr is
// the error from starting the process (nil when it ran), exitCode and output
// describe the finished process.
//
// An unrecognized non-zero exit is reported as available with the output
// attached: a broken backend fails loudly on its first real invocation.
func Classify(bin string, exitCode int, output string, spawnErr error) Availability {
	if spawnErr != nil {
		if isNotFound(spawnErr) {
			return Availability{Status: StatusMissing, Details: fmt.Sprintf("command not found: %s", bin)}
		}
		return Availability{Status: StatusMissing, Details: spawnErr.Error()}
	}

	output = strings.TrimSpace(output)
	if exitCode == 0 {
		return Availability{Status: StatusAvailable}
	}
	if LooksUnauthenticated(output) {
		return Availability{Status: StatusUnauthenticated, Details: output}
	}
	if LooksMissing(output) {
		return Availability{Status: StatusMissing, Details: fmt.Sprintf("command not found: %s", bin)}
	}
	if output == "" {
		output = fmt.Sprintf("exitCode=%d", exitCode)
	}
	return Availability{Status: StatusAvailable, Details: output}
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
