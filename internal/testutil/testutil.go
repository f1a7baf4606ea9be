// Package testutil provides fake backend CLIs for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// MockBackend describes a shell script that stands in for an AI CLI.
type MockBackend struct {
	// Version runs for `--version`. Default: print a version and exit 0.
	Version string
	// Body runs for every other call. $n holds the 1-based call number,
	// $prompt the stdin content (if any).
	Body string
}

// Install writes the script into a fresh temp dir and returns its path.
func (m MockBackend) Install(t *testing.T) string {
	t.Helper()
	RequireUnix(t)

	version := m.Version
	if version == "" {
		version = `echo "mock-backend 1.0.0"`
	}

	script := fmt.Sprintf(`#!/bin/bash
if [ "$1" = "--version" ]; then
%s
exit $?
fi
count_file="$(dirname "$0")/calls"
n=$(( $(cat "$count_file" 2>/dev/null || echo 0) + 1 ))
echo "$n" > "$count_file"
prompt=""
if [ ! -t 0 ]; then
  prompt="$(cat)"
fi
%s
`, version, m.Body)

	path := filepath.Join(t.TempDir(), "mock-backend")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing mock backend: %v", err)
	}
	return path
}

// Calls returns how many prompt invocations the installed script received.
func Calls(t *testing.T, scriptPath string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(scriptPath), "calls"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("reading call count: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing call count: %v", err)
	}
	return n
}

// MarkerAfter returns a body that prints DONE on call number done.
func MarkerAfter(done int) string {
	return fmt.Sprintf(`if [ "$n" -ge %d ]; then
  printf 'Completed step %%s\nDONE\n' "$n"
else
  echo "Working on step $n..."
fi`, done)
}

// RequireUnix skips tests that rely on bash scripts.
func RequireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock backends are bash scripts")
	}
}
