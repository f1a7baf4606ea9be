package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys lists the settable configuration keys.
var Keys = []string{
	"backend",
	"max_iterations",
	"timeout_ms",
	"completion_mode",
	"no_progress_limit",
}

// IsKey reports whether key is a configuration key.
func IsKey(key string) bool {
	return contains(Keys, key)
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys, ", "))
}

// Get returns the string form of a key's value.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "backend":
		return c.Backend, nil
	case "max_iterations":
		return strconv.Itoa(c.MaxIterations), nil
	case "timeout_ms":
		return strconv.FormatInt(c.TimeoutMs, 10), nil
	case "completion_mode":
		return c.CompletionMode, nil
	case "no_progress_limit":
		return strconv.Itoa(c.NoProgressLimit), nil
	default:
		return "", unknownKey(key)
	}
}

// Set parses raw and stores it under key in the layer. It performs no I/O.
func (l *Layer) Set(key, raw string) error {
	raw = strings.TrimSpace(raw)
	switch key {
	case "backend":
		if !contains(ValidBackends, raw) {
			return fmt.Errorf("invalid value for backend: %q", raw)
		}
		l.Backend = &raw
	case "completion_mode":
		if !contains(ValidCompletionModes, raw) {
			return fmt.Errorf("invalid value for completion_mode: %q", raw)
		}
		l.CompletionMode = &raw
	case "max_iterations", "no_progress_limit":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s (integer required): %q", key, raw)
		}
		if key == "max_iterations" {
			if n <= 0 {
				return fmt.Errorf("max_iterations must be > 0")
			}
			l.MaxIterations = &n
		} else {
			if n < 0 {
				return fmt.Errorf("no_progress_limit must be >= 0")
			}
			l.NoProgressLimit = &n
		}
	case "timeout_ms":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for timeout_ms (integer required): %q", raw)
		}
		if n <= 0 {
			return fmt.Errorf("timeout_ms must be > 0")
		}
		l.TimeoutMs = &n
	default:
		return unknownKey(key)
	}
	return nil
}

// SaveLayer writes a layer as YAML, creating the parent directory.
func SaveLayer(path string, l *Layer) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return &FileError{Path: path, Err: fmt.Errorf("encoding config: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &FileError{Path: path, Err: fmt.Errorf("writing config file: %w", err)}
	}
	return nil
}

// SetUserValue updates one key in the user file and saves it.
func SetUserValue(key, raw string) error {
	path := UserPath()
	l, err := LoadLayer(path)
	if err != nil {
		return err
	}
	if err := l.Set(key, raw); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return SaveLayer(path, l)
}
