package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved orchestration configuration.
type Config struct {
	Backend         string `yaml:"backend" json:"backend"`
	MaxIterations   int    `yaml:"max_iterations" json:"max_iterations"`
	TimeoutMs       int64  `yaml:"timeout_ms" json:"timeout_ms"`
	CompletionMode  string `yaml:"completion_mode" json:"completion_mode"`
	NoProgressLimit int    `yaml:"no_progress_limit" json:"no_progress_limit"`
}

// Layer is one configuration file. Absent keys stay nil and do not override
// lower layers.
type Layer struct {
	Backend         *string `yaml:"backend,omitempty"`
	MaxIterations   *int    `yaml:"max_iterations,omitempty"`
	TimeoutMs       *int64  `yaml:"timeout_ms,omitempty"`
	CompletionMode  *string `yaml:"completion_mode,omitempty"`
	NoProgressLimit *int    `yaml:"no_progress_limit,omitempty"`
}

// Defaults
const (
	DefaultBackend         = "copilot"
	DefaultMaxIterations   = 10
	DefaultTimeoutMs       = 300_000
	DefaultCompletionMode  = "marker"
	DefaultNoProgressLimit = 3

	// ProjectFileName is looked up from the working directory upwards.
	ProjectFileName = ".jlgcli.yaml"
	// HomeEnv overrides the directory holding the user file.
	HomeEnv = "JLGCLI_HOME"

	maxProjectDepth = 100
)

// ValidBackends lists the backends a config file may select.
var ValidBackends = []string{"copilot", "codex"}

// ValidCompletionModes lists the accepted completion modes.
var ValidCompletionModes = []string{"marker", "json"}

// FileError reports a problem with a specific configuration file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Default returns a config with default values
func Default() *Config {
	return &Config{
		Backend:         DefaultBackend,
		MaxIterations:   DefaultMaxIterations,
		TimeoutMs:       DefaultTimeoutMs,
		CompletionMode:  DefaultCompletionMode,
		NoProgressLimit: DefaultNoProgressLimit,
	}
}

// Timeout returns the global timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Apply overlays the keys set in l.
func (c *Config) Apply(l *Layer) {
	if l == nil {
		return
	}
	if l.Backend != nil {
		c.Backend = *l.Backend
	}
	if l.MaxIterations != nil {
		c.MaxIterations = *l.MaxIterations
	}
	if l.TimeoutMs != nil {
		c.TimeoutMs = *l.TimeoutMs
	}
	if l.CompletionMode != nil {
		c.CompletionMode = *l.CompletionMode
	}
	if l.NoProgressLimit != nil {
		c.NoProgressLimit = *l.NoProgressLimit
	}
}

// Validate checks config validity
func (c *Config) Validate() error {
	if !contains(ValidBackends, c.Backend) {
		return fmt.Errorf("backend must be copilot or codex, got %q", c.Backend)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be > 0, got %d", c.TimeoutMs)
	}
	if !contains(ValidCompletionModes, c.CompletionMode) {
		return fmt.Errorf("completion_mode must be marker or json, got %q", c.CompletionMode)
	}
	if c.NoProgressLimit < 0 {
		return fmt.Errorf("no_progress_limit must be >= 0, got %d", c.NoProgressLimit)
	}
	return nil
}

// Validate checks the keys present in a layer.
func (l *Layer) Validate() error {
	cfg := Default()
	cfg.Apply(l)
	return cfg.Validate()
}

// Parse parses a YAML layer.
func Parse(data []byte) (*Layer, error) {
	l := &Layer{}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadLayer loads a layer from path. A missing file is an empty layer.
func LoadLayer(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Layer{}, nil
	}
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}
	l, err := Parse(data)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return l, nil
}

// Resolve merges defaults < user file < project file, the project file being
// found by walking up from dir.
func Resolve(dir string) (*Config, error) {
	cfg := Default()

	user, err := LoadLayer(UserPath())
	if err != nil {
		return nil, err
	}
	cfg.Apply(user)

	if root, ok := FindProjectRoot(dir); ok {
		project, err := LoadLayer(filepath.Join(root, ProjectFileName))
		if err != nil {
			return nil, err
		}
		cfg.Apply(project)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserPath returns the user configuration file path.
// Uses JLGCLI_HOME if set, otherwise the home directory.
func UserPath() string {
	root := os.Getenv(HomeEnv)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		root = home
	}
	return filepath.Join(root, ProjectFileName)
}

// FindProjectRoot walks up from dir looking for a project file.
func FindProjectRoot(dir string) (string, bool) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for depth := 0; depth < maxProjectDepth; depth++ {
		if info, err := os.Stat(filepath.Join(current, ProjectFileName)); err == nil && !info.IsDir() {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
	return "", false
}

// ProjectPath returns the project file path, or "" when none is found.
func ProjectPath(dir string) string {
	root, ok := FindProjectRoot(dir)
	if !ok {
		return ""
	}
	return filepath.Join(root, ProjectFileName)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
