package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FromRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `version: 1
timeout: 10m
echo: true
env:
  LANG: C
tests:
  - framework: go
    args: ["./..."]
  - name: specs
    framework: rspec
    dir: ruby
console:
  - command: ruby fizzbuzz.rb
    input: ["1", "2", "3"]
    expected: ["1", "2", "Fizz"]
watchdog:
  limit: 95
  frequency: 5
  interval: 1s
`)

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, dir)
	}
	if res.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", res.Path)
	}
	cfg := res.Config
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Timeout() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", cfg.Timeout())
	}
	if !cfg.Echo || cfg.Env["LANG"] != "C" {
		t.Errorf("Echo = %v, Env = %v", cfg.Echo, cfg.Env)
	}
	if len(cfg.Tests) != 2 {
		t.Fatalf("Tests = %+v", cfg.Tests)
	}
	if cfg.Tests[0].Name != "go" {
		t.Errorf("Tests[0].Name = %q, want framework name default", cfg.Tests[0].Name)
	}
	if cfg.Tests[1].Dir != "ruby" {
		t.Errorf("Tests[1].Dir = %q", cfg.Tests[1].Dir)
	}
	if len(cfg.Console) != 1 || cfg.Console[0].Name != "console-1" {
		t.Fatalf("Console = %+v", cfg.Console)
	}
	if got := cfg.Console[0].Expected; len(got) != 3 || got[2] != "Fizz" {
		t.Errorf("Console[0].Expected = %q", got)
	}
	if cfg.Watchdog == nil || cfg.Watchdog.Frequency != 5 || cfg.Watchdog.Interval() != time.Second {
		t.Errorf("Watchdog = %+v", cfg.Watchdog)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version: 2\n")
	sub := filepath.Join(root, "pkg", "foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q (fallback to workspace)", res.RepoRoot, dir)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty", res.Path)
	}
	if res.Config.Timeout() != DefaultTimeout || res.Config.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("expected defaults, got %v / %d", res.Config.Timeout(), res.Config.MaxOutputBytes())
	}
}

func TestLoad_DirectoryNamedLikeConfigIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, FileName), 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty", res.Path)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "tests: [", "parsing"},
		{"missing framework", "tests:\n  - name: x\n", "framework is required"},
		{"missing command", "console:\n  - name: x\n", "command is required"},
		{"duplicate names", "tests:\n  - framework: go\n  - framework: go\n", "duplicate name"},
		{"bad interval", "watchdog:\n  interval: soon\n", "watchdog.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{RawTimeout: "nonsense", RawMaxOutput: -1}
	if cfg.Timeout() != DefaultTimeout {
		t.Errorf("Timeout = %v, want default", cfg.Timeout())
	}
	if cfg.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes = %d, want default", cfg.MaxOutputBytes())
	}
	if (&WatchdogConfig{}).Interval() != 0 {
		t.Error("empty interval should be 0")
	}
}
