// Package console verifies interactive console programs by feeding a
// fixed sequence of input lines and comparing stdout line by line with
// the expected output.
package console

import (
	"context"
	"io"
	"os"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck/internal/metrics"
	"github.com/deixis/codecheck/internal/runner"
)

// Script is the fixed input and expected output of one interaction.
type Script struct {
	Inputs   []string `yaml:"input" json:"input"`
	Expected []string `yaml:"expected" json:"expected"`
}

// Option configures a Harness.
type Option func(*Harness)

// WithEnv overlays env on the ambient environment of the program.
func WithEnv(env map[string]string) Option {
	return func(h *Harness) { h.env = env }
}

// WithEcho mirrors program output to the given writers.
func WithEcho(stdout, stderr io.Writer) Option {
	return func(h *Harness) {
		h.echo = true
		h.stdout, h.stderr = stdout, stderr
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithProcessHook is called with the process before it starts, e.g. to
// register extra line handlers.
func WithProcessHook(fn func(*runner.Process)) Option {
	return func(h *Harness) { h.hook = fn }
}

// WithStartHook is called with the process right after it starts, e.g.
// to attach a watchdog that needs the pid.
func WithStartHook(fn func(*runner.Process)) Option {
	return func(h *Harness) { h.started = fn }
}

// Harness drives one console program through a Script.
type Harness struct {
	command string
	args    []string
	dir     string
	script  Script

	env     map[string]string
	echo    bool
	stdout  io.Writer
	stderr  io.Writer
	logger  *log.Logger
	hook    func(*runner.Process)
	started func(*runner.Process)
}

// New creates a harness for command. When args is nil, command is split
// into executable and arguments.
func New(command string, args []string, dir string, script Script, opts ...Option) *Harness {
	h := &Harness{
		command: command,
		args:    slices.Clone(args),
		dir:     dir,
		script: Script{
			Inputs:   slices.Clone(script.Inputs),
			Expected: slices.Clone(script.Expected),
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard)
	}
	return h
}

// Verify runs the program to completion and compares its stdout with the
// expected lines. Inputs are written positionally, one line each, with
// no prompt detection. An error is returned only when the program cannot
// be started or ctx ends first; output differences are reported in the
// Result.
func (h *Harness) Verify(ctx context.Context) (*Result, error) {
	p, err := runner.New(runner.Options{
		Command: h.command,
		Args:    h.args,
		Dir:     h.dir,
		Env:     h.env,
		Stdin:   h.script.Inputs,
		Echo:    h.echo,
		Stdout:  h.stdout,
		Stderr:  h.stderr,
		Logger:  h.logger,
	})
	if err != nil {
		return nil, err
	}

	var actual []string
	p.OnLine(func(l runner.Line) {
		if l.Stream == runner.Stdout {
			actual = append(actual, l.Text)
		}
	})
	if h.hook != nil {
		h.hook(p)
	}

	if err := p.Start(); err != nil {
		return nil, err
	}
	if h.started != nil {
		h.started(p)
	}
	code, err := p.Wait(ctx)
	if err != nil {
		_ = p.Kill(os.Kill)
		return nil, err
	}

	res := Compare(h.script.Expected, actual)
	res.ExitCode = code
	metrics.RecordConsole(res.Succeed)
	if !res.Succeed {
		h.logger.Info("console output mismatch", "command", p.CommandLine(), "errors", len(res.Errors))
	}
	return res, nil
}
