package backend

import (
	"os"
	"sort"
	"strings"
)

// Environ is a read-only snapshot of a process environment in KEY=VALUE form.
type Environ []string

// SnapshotEnv captures the current process environment.
func SnapshotEnv() Environ {
	return Environ(os.Environ())
}

// Merge returns a new environment with overrides applied on top of e.
// Neither e nor overrides is modified. Override keys that are not already
// present are appended in sorted order so the result is deterministic.
func (e Environ) Merge(overrides map[string]string) []string {
	out := make([]string, 0, len(e)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range e {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// resolveBin returns the binary named by envVar, or fallback.
func resolveBin(envVar, fallback string) string {
	if bin := os.Getenv(envVar); bin != "" {
		return bin
	}
	return fallback
}
