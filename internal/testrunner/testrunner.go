// Package testrunner runs an external test framework as a child process
// and tallies its results as output arrives.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck/internal/framework"
	"github.com/deixis/codecheck/internal/metrics"
	"github.com/deixis/codecheck/internal/runner"
)

// Result is the outcome of one framework run. Ambiguous is set when the
// exit code and the tally disagree: a non-zero exit without recognised
// failures, or a zero exit with failures. Callers decide how to grade it.
type Result struct {
	Framework string          `json:"framework"`
	Command   string          `json:"command"`
	Tally     framework.Tally `json:"tally"`
	ExitCode  int             `json:"exit_code"`
	Ambiguous bool            `json:"ambiguous,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Passed reports a zero exit with no recognised failures.
func (r *Result) Passed() bool {
	return r.ExitCode == 0 && r.Tally.Failure == 0
}

// Options are passed through to the underlying process. Stdout and
// Stderr are the echo targets and default to the terminal.
type Options struct {
	Env    map[string]string
	Echo   bool
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// TestRunner wraps one Process and feeds its lines to a recognizer.
type TestRunner struct {
	spec   framework.Spec
	proc   *runner.Process
	logger *log.Logger

	mu     sync.Mutex
	rec    framework.Recognizer
	tally  framework.Tally
	result *Result
}

// New builds a runner for spec with the user's args, run in dir.
func New(spec framework.Spec, args []string, dir string, opts Options) (*TestRunner, error) {
	path, err := commandPath(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("framework %s: %w", spec.Name, err)
	}
	proc, err := runner.New(runner.Options{
		Command: path[0],
		Args:    append(path[1:len(path):len(path)], spec.Args(args)...),
		Dir:     dir,
		Env:     opts.Env,
		Echo:    opts.Echo,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("framework %s: %w", spec.Name, err)
	}

	tr := &TestRunner{
		spec:   spec,
		proc:   proc,
		logger: opts.Logger,
		rec:    spec.Recognizer(),
	}
	if tr.logger == nil {
		tr.logger = log.New(io.Discard)
	}
	proc.OnLine(tr.onLine)
	return tr, nil
}

// commandPath splits a command template into executable and arguments.
// The template is split once so user arguments are never re-tokenised.
// A template that does not parse as a command line, such as a name with
// an unbalanced quote, is taken verbatim as the executable.
func commandPath(command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("empty command")
	}
	base, err := runner.New(runner.Options{Command: command})
	if err != nil {
		return []string{command}, nil
	}
	return append([]string{base.Path()}, base.Args()...), nil
}

func (tr *TestRunner) onLine(l runner.Line) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.rec.Recognize(l.Stream, l.Text, &tr.tally)
}

// Framework returns the framework name.
func (tr *TestRunner) Framework() string { return tr.spec.Name }

// CommandLine returns the full invocation.
func (tr *TestRunner) CommandLine() string { return tr.proc.CommandLine() }

// Process exposes the underlying process for collaborators that need
// to signal it, such as a watchdog.
func (tr *TestRunner) Process() *runner.Process { return tr.proc }

// Run starts the framework. It returns a *runner.SpawnError when the
// executable cannot be launched.
func (tr *TestRunner) Run() error {
	tr.logger.Debug("running tests", "framework", tr.spec.Name, "command", tr.proc.CommandLine())
	return tr.proc.Start()
}

// Tally returns the counts recognised so far. It is safe to poll while
// the framework runs.
func (tr *TestRunner) Tally() framework.Tally {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.tally
}

// Kill forwards sig to the running framework.
func (tr *TestRunner) Kill(sig os.Signal) error { return tr.proc.Kill(sig) }

// Wait blocks until the framework exits and returns the final result.
func (tr *TestRunner) Wait(ctx context.Context) (*Result, error) {
	code, err := tr.proc.Wait(ctx)
	if err != nil {
		return nil, err
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.result != nil {
		return tr.result, nil
	}
	res := &Result{
		Framework: tr.spec.Name,
		Command:   tr.proc.CommandLine(),
		Tally:     tr.tally,
		ExitCode:  code,
	}
	switch {
	case code != 0 && res.Tally.Failure == 0:
		res.Ambiguous = true
		res.Reason = fmt.Sprintf("exit code %d but no failures recognised", code)
	case code == 0 && res.Tally.Failure > 0:
		res.Ambiguous = true
		res.Reason = fmt.Sprintf("exit code 0 but %d failures recognised", res.Tally.Failure)
	}
	if res.Ambiguous {
		tr.logger.Warn("ambiguous test result", "framework", tr.spec.Name, "reason", res.Reason)
	}
	metrics.RecordTally(tr.spec.Name, res.Tally.Success, res.Tally.Failure, res.Ambiguous)
	tr.result = res
	return res, nil
}

// Execute runs the framework to completion.
func (tr *TestRunner) Execute(ctx context.Context) (*Result, error) {
	if err := tr.Run(); err != nil {
		return nil, err
	}
	res, err := tr.Wait(ctx)
	if err != nil {
		// Do not leave the child running when the caller gives up.
		_ = tr.Kill(os.Kill)
		return nil, err
	}
	return res, nil
}
