// Package config loads and validates the optional .codecheck YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the workspace upward.
const FileName = ".codecheck"

// Default values for run configuration.
const (
	DefaultTimeout   = 5 * time.Minute
	DefaultMaxOutput = 1 << 20 // 1 MB
)

// Config holds the parsed .codecheck configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int                 `yaml:"version"`
	RawTimeout   string              `yaml:"timeout"`    // e.g. "5m", "30s"
	RawMaxOutput int                 `yaml:"max_output"` // bytes per stream
	Echo         bool                `yaml:"echo"`
	Env          map[string]string   `yaml:"env"`
	Tests        []TestSuiteConfig   `yaml:"tests"`
	Console      []ConsoleCaseConfig `yaml:"console"`
	Watchdog     *WatchdogConfig     `yaml:"watchdog"`
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// TestSuiteConfig runs one test framework.
type TestSuiteConfig struct {
	Name      string   `yaml:"name"`
	Framework string   `yaml:"framework"` // e.g. go, mocha, rspec; unknown names run as commands
	Args      []string `yaml:"args"`
	Dir       string   `yaml:"dir"` // relative to the workspace
}

// ConsoleCaseConfig verifies one console program interaction.
type ConsoleCaseConfig struct {
	Name     string   `yaml:"name"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"` // when set, command is the executable verbatim
	Dir      string   `yaml:"dir"`
	Input    []string `yaml:"input"`
	Expected []string `yaml:"expected"`
}

// WatchdogConfig enables the CPU watchdog for every child process.
type WatchdogConfig struct {
	Limit       float64 `yaml:"limit"`     // percent of one core
	Frequency   int     `yaml:"frequency"` // consecutive samples over the limit
	RawInterval string  `yaml:"interval"`  // e.g. "1s"
}

// Interval returns the parsed sampling interval, or 0 for the default.
func (w *WatchdogConfig) Interval() time.Duration {
	d, err := time.ParseDuration(w.RawInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate checks required fields and assigns default names. Suite and
// case names must be unique so reports can address them.
func (c *Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	claim := func(kind, name string) {
		if seen[name] {
			errs = append(errs, fmt.Errorf("%s %q: duplicate name", kind, name))
		}
		seen[name] = true
	}

	for i := range c.Tests {
		t := &c.Tests[i]
		if t.Framework == "" {
			errs = append(errs, fmt.Errorf("tests[%d]: framework is required", i))
		}
		if t.Name == "" {
			t.Name = t.Framework
		}
		claim("test", t.Name)
	}
	for i := range c.Console {
		cc := &c.Console[i]
		if cc.Command == "" {
			errs = append(errs, fmt.Errorf("console[%d]: command is required", i))
		}
		if cc.Name == "" {
			cc.Name = fmt.Sprintf("console-%d", i+1)
		}
		claim("console", cc.Name)
	}
	if c.Watchdog != nil && c.Watchdog.RawInterval != "" {
		if _, err := time.ParseDuration(c.Watchdog.RawInterval); err != nil {
			errs = append(errs, fmt.Errorf("watchdog.interval: %w", err))
		}
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing .codecheck; falls back to workspace
	Path     string // config file path, empty when none was found
}

// Load reads the .codecheck file found by walking upward from workspace.
// If none exists, a default Config rooted at workspace is returned.
func Load(workspace string) (*LoadResult, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	root, ok := findConfigRoot(abs)
	if !ok {
		return &LoadResult{Config: &Config{}, RepoRoot: abs}, nil
	}
	path := filepath.Join(root, FileName)
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, RepoRoot: root, Path: path}, nil
}

// LoadFile parses and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return Parse(data)
}

// Parse decodes and validates config data.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

// findConfigRoot walks upward from dir looking for a directory that
// holds a .codecheck file.
func findConfigRoot(dir string) (string, bool) {
	for {
		if fi, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
