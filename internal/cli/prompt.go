package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jlguenego/jlgcli/internal/exitcode"
)

// StdinSource reads the prompt from standard input.
const StdinSource = "-"

// readPrompt loads and trims the prompt from a file, or from stdin for "-".
// Relative paths resolve against dir. Every failure maps to exit code 66.
func readPrompt(source, dir string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if source == StdinSource {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return "", exitcode.Wrap(exitcode.NoInput, "reading prompt from stdin", err)
		}
	} else {
		path := source
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", exitcode.Newf(exitcode.NoInput, "prompt file not found: %s", source)
		}
		if err != nil {
			return "", exitcode.Wrap(exitcode.NoInput, fmt.Sprintf("reading prompt file %s", source), err)
		}
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", exitcode.New(exitcode.NoInput, "prompt is empty")
	}
	return prompt, nil
}

// parseEnv turns repeated KEY=VALUE flags into a map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, exitcode.Newf(exitcode.Usage, "invalid --env %q: expected KEY=VALUE", p)
		}
		env[key] = value
	}
	return env, nil
}
