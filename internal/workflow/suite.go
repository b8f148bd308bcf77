package workflow

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/report"
	"github.com/deixis/codecheck/internal/runner"
)

// maxOutputLines is the number of trailing output lines kept for a
// failing suite.
const maxOutputLines = 40

// RunSuite runs one configured test suite to completion. Problems that
// prevent a verdict are reported through the Status and Reason of the
// result rather than as an error, so one broken suite never hides the
// others.
func (e *Engine) RunSuite(ctx context.Context, s config.TestSuiteConfig) report.SuiteResult {
	out := report.SuiteResult{Name: s.Name, Framework: s.Framework}
	if out.Name == "" {
		out.Name = s.Framework
	}
	fail := func(status report.Status, err error) report.SuiteResult {
		out.Status = status
		out.Reason = err.Error()
		e.logger().Warn("suite did not run", "suite", out.Name, "status", status, "err", err)
		return out
	}

	dir, err := e.ResolveDir(s.Dir)
	if err != nil {
		return fail(report.Error, err)
	}

	registry := e.Registry()
	tr, err := registry.New(s.Framework, s.Args, dir)
	if err != nil {
		return fail(report.Error, err)
	}
	out.Command = tr.CommandLine()

	spec := registry.Spec(s.Framework)
	if _, err := e.ResolveTool(tr.Process().Path(), dir, spec.Install); err != nil {
		return fail(report.Unavailable, err)
	}

	tail := newLineTail(maxOutputLines)
	tr.Process().OnLine(tail.add)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	e.logger().Info("running suite", "suite", out.Name, "command", out.Command)
	if err := tr.Run(); err != nil {
		var spawnErr *runner.SpawnError
		if errors.As(err, &spawnErr) {
			return fail(report.Unavailable, ErrToolUnavailable{Name: tr.Process().Path(), Hint: spec.Install})
		}
		return fail(report.Error, err)
	}
	watched := e.watch(ctx, tr.Process())

	res, err := tr.Wait(ctx)
	if err != nil {
		_ = tr.Kill(os.Kill)
		<-watched
		out.Status = report.Error
		out.Reason = killReason(ctx, e.Config.Timeout(), false)
		if out.Reason == "" {
			out.Reason = err.Error()
		}
		out.Tally = tr.Tally()
		out.Output = tail.String()
		return out
	}
	tripped := <-watched

	out.Tally = res.Tally
	out.ExitCode = res.ExitCode
	switch {
	case tripped:
		out.Status = report.Error
		out.Reason = killReason(ctx, 0, true)
	case res.Ambiguous:
		out.Status = report.Ambiguous
		out.Reason = res.Reason
	case res.Passed():
		out.Status = report.Pass
	default:
		out.Status = report.Fail
	}
	if out.Status != report.Pass {
		out.Output = tail.String()
	}
	e.logger().Info("suite finished", "suite", out.Name, "status", out.Status,
		"passed", out.Tally.Success, "failed", out.Tally.Failure, "exit", out.ExitCode)
	return out
}

// lineTail keeps the last n lines of both output streams.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	n     int
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(l runner.Line) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, l.Text)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
