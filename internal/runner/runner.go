// Package runner launches child processes and streams their output as
// lines. Process is the streaming primitive; Runner layers workspace
// bounds, a timeout and an output cap on top of it for callers that only
// need the captured result.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Runner executes commands within a workspace boundary.
type Runner struct {
	Workspace string
	Timeout   time.Duration
	MaxOutput int // bytes per stream
	Env       map[string]string
	Echo      bool
	Logger    *log.Logger
}

// Run executes argv to completion. The first element is the binary name
// (resolved via PATH) and is never interpreted by a shell. cwd is
// resolved relative to the workspace root and must remain within it.
// When the timeout expires the process is killed and its partial output
// returned.
func (r *Runner) Run(ctx context.Context, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.ResolveDir(cwd)
	if err != nil {
		return nil, err
	}

	p, err := New(Options{
		Command: argv[0],
		Args:    argv[1:],
		Dir:     dir,
		Env:     r.Env,
		Echo:    r.Echo,
		Logger:  r.Logger,
	})
	if err != nil {
		return nil, err
	}

	var stdout, stderr capBuffer
	stdout.limit, stderr.limit = r.MaxOutput, r.MaxOutput
	p.OnLine(func(l Line) {
		if l.Stream == Stdout {
			stdout.writeLine(l.Text)
		} else {
			stderr.writeLine(l.Text)
		}
	})

	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", argv[0], err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	timedOut := false
	select {
	case <-p.Done():
	case <-ctx.Done():
		timedOut = true
		_ = p.Kill(os.Kill)
		<-p.Done()
	}

	code, _ := p.ExitCode()
	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  code,
		Stdout:    stdout.buf.Bytes(),
		Stderr:    stderr.buf.Bytes(),
		Truncated: stdout.truncated || stderr.truncated,
		TimedOut:  timedOut,
	}, nil
}

// ResolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) ResolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}
	if r.Workspace == "" {
		return filepath.Clean(cwd), nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// capBuffer keeps up to limit bytes of newline-terminated lines and
// silently discards the rest. A limit <= 0 means unbounded.
type capBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *capBuffer) writeLine(s string) {
	line := s + "\n"
	if c.limit <= 0 {
		c.buf.WriteString(line)
		return
	}
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return
	}
	if len(line) > remaining {
		c.buf.WriteString(line[:remaining])
		c.truncated = true
		return
	}
	c.buf.WriteString(line)
}
