package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/deixis/codecheck/internal/framework"
	"github.com/deixis/codecheck/internal/runner"
)

// probeTimeout bounds a single version probe.
const probeTimeout = 30 * time.Second

// versionArgs maps executables to the flags that print their version.
// Anything not listed is probed with --version.
var versionArgs = map[string][]string{
	"go":    {"version"},
	"mvn":   {"-v"},
	"sbt":   {"--script-version"},
	"cabal": {"--numeric-version"},
}

// FrameworkInfo describes one built-in framework on this machine.
type FrameworkInfo struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Install   string `json:"install,omitempty"`
}

// Frameworks reports which built-in frameworks are installed. When
// probe is set, each available executable is asked for its version.
func (e *Engine) Frameworks(ctx context.Context, probe bool) []FrameworkInfo {
	var out []FrameworkInfo
	for _, name := range framework.Names() {
		spec, _ := framework.Lookup(name)
		info := FrameworkInfo{Name: name, Command: spec.Command, Install: spec.Install}

		p, err := runner.New(runner.Options{Command: spec.Command})
		if err != nil {
			out = append(out, info)
			continue
		}
		exe := p.Path()
		path, err := e.ResolveTool(exe, e.root(), spec.Install)
		if err == nil {
			info.Available = true
			info.Path = path
			if probe {
				info.Version = e.version(ctx, exe, path)
			}
		}
		out = append(out, info)
	}
	return out
}

func (e *Engine) version(ctx context.Context, exe, path string) string {
	if e.Runner == nil {
		return ""
	}
	args, ok := versionArgs[exe]
	if !ok {
		args = []string{"--version"}
	}
	res, err := e.Runner.Run(ctx, append([]string{path}, args...), "")
	if err != nil || res.TimedOut {
		e.logger().Debug("version probe failed", "tool", exe, "err", err)
		return ""
	}
	out := res.Stdout
	if len(strings.TrimSpace(string(out))) == 0 {
		out = res.Stderr
	}
	return FirstLine(string(out))
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
