// Package workflow provides the execution engine behind codecheck's
// test and console pipelines. It is consumed by both the MCP server and
// the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/runner"
	"github.com/deixis/codecheck/internal/testrunner"
	"github.com/deixis/codecheck/internal/watchdog"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config    *config.Config
	Runner    CommandRunner // short-lived probes such as version checks
	Workspace string        // cwd the engine was started from
	RepoRoot  string        // directory holding .codecheck; suite dirs resolve here
	Logger    *log.Logger

	// Stdout and Stderr receive echoed child output when Config.Echo is
	// set. They default to the terminal.
	Stdout io.Writer
	Stderr io.Writer

	// LookPath resolves executables; nil means exec.LookPath.
	LookPath func(string) (string, error)
}

// New returns an engine with a workspace-bounded runner for probes.
func New(cfg *config.Config, workspace, repoRoot string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		Config: cfg,
		Runner: &runner.Runner{
			Workspace: repoRoot,
			Timeout:   probeTimeout,
			MaxOutput: cfg.MaxOutputBytes(),
			Env:       cfg.Env,
			Logger:    logger,
		},
		Workspace: workspace,
		RepoRoot:  repoRoot,
		Logger:    logger,
	}
}

func (e *Engine) logger() *log.Logger {
	if e.Logger == nil {
		return log.New(io.Discard)
	}
	return e.Logger
}

func (e *Engine) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e *Engine) root() string {
	if e.RepoRoot != "" {
		return e.RepoRoot
	}
	return e.Workspace
}

// Registry returns a test runner registry wired to the engine's
// environment, echo and logger settings.
func (e *Engine) Registry() *testrunner.Registry {
	return testrunner.NewRegistry(testrunner.Options{
		Env:    e.Config.Env,
		Echo:   e.Config.Echo,
		Stdout: e.stdout(),
		Stderr: e.stderr(),
		Logger: e.logger(),
	})
}

// ResolveDir resolves a suite or case directory relative to the repo
// root and rejects paths that leave it.
func (e *Engine) ResolveDir(dir string) (string, error) {
	r := runner.Runner{Workspace: e.root()}
	return r.ResolveDir(dir)
}

// ResolveTool returns the absolute path of executable name as it would
// be launched from dir. A name containing a path separator is taken
// relative to dir; a bare name is searched on PATH. When the executable
// cannot be found the error is an ErrToolUnavailable carrying hint.
func (e *Engine) ResolveTool(name, dir, hint string) (string, error) {
	look := e.LookPath
	if look == nil {
		look = exec.LookPath
	}
	path := name
	if strings.ContainsRune(name, filepath.Separator) && !filepath.IsAbs(name) && dir != "" {
		path = filepath.Join(dir, name)
	}
	resolved, err := look(path)
	if err != nil {
		return "", ErrToolUnavailable{Name: name, Hint: hint}
	}
	return resolved, nil
}

// ErrToolUnavailable is returned when a required executable is not
// installed. It includes actionable install instructions when known.
type ErrToolUnavailable struct {
	Name string
	Hint string
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n\nInstall: %s", e.Hint)
	}
	return b.String()
}

// watch starts the CPU watchdog on p when one is configured. The
// returned channel yields once, after the watchdog stops, whether it
// killed the process.
func (e *Engine) watch(ctx context.Context, p *runner.Process) <-chan bool {
	done := make(chan bool, 1)
	wc := e.Config.Watchdog
	if wc == nil {
		done <- false
		return done
	}
	w := &watchdog.Watchdog{
		Limit:     wc.Limit,
		Frequency: wc.Frequency,
		Interval:  wc.Interval(),
		Logger:    e.logger(),
	}
	go func() {
		err := w.Watch(ctx, p)
		if err != nil && !errors.Is(err, watchdog.ErrKilled) && ctx.Err() == nil && p.State() != runner.Ended {
			e.logger().Warn("watchdog stopped", "command", p.CommandLine(), "err", err)
		}
		done <- errors.Is(err, watchdog.ErrKilled)
	}()
	return done
}

// withTimeout bounds ctx by the configured run timeout.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.Config.Timeout())
}

// killReason describes why a run was stopped early, or "".
func killReason(ctx context.Context, timeout time.Duration, tripped bool) string {
	switch {
	case tripped:
		return "killed by watchdog: cpu limit exceeded"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s", timeout)
	case ctx.Err() != nil:
		return ctx.Err().Error()
	}
	return ""
}
