package workflow

import (
	"context"
	"errors"

	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/console"
	"github.com/deixis/codecheck/internal/report"
	"github.com/deixis/codecheck/internal/runner"
)

// RunConsole verifies one configured console interaction.
func (e *Engine) RunConsole(ctx context.Context, c config.ConsoleCaseConfig) report.ConsoleResult {
	out := report.ConsoleResult{Name: c.Name, Command: c.Command}

	dir, err := e.ResolveDir(c.Dir)
	if err != nil {
		out.Status = report.Error
		out.Reason = err.Error()
		return out
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	stderr := newLineTail(maxOutputLines)
	watched := make(chan (<-chan bool), 1)
	opts := []console.Option{
		console.WithEnv(e.Config.Env),
		console.WithLogger(e.logger()),
		console.WithProcessHook(func(p *runner.Process) {
			p.OnLine(func(l runner.Line) {
				if l.Stream == runner.Stderr {
					stderr.add(l)
				}
			})
		}),
		console.WithStartHook(func(p *runner.Process) {
			watched <- e.watch(ctx, p)
		}),
	}
	if e.Config.Echo {
		opts = append(opts, console.WithEcho(e.stdout(), e.stderr()))
	}
	h := console.New(c.Command, c.Args, dir, console.Script{Inputs: c.Input, Expected: c.Expected}, opts...)

	e.logger().Info("running console case", "case", c.Name, "command", c.Command)
	res, err := h.Verify(ctx)
	tripped := false
	select {
	case w := <-watched:
		tripped = <-w
	default:
	}
	if err != nil {
		var spawnErr *runner.SpawnError
		if errors.As(err, &spawnErr) {
			out.Status = report.Unavailable
			out.Reason = spawnErr.Error()
			return out
		}
		out.Status = report.Error
		out.Reason = killReason(ctx, e.Config.Timeout(), tripped)
		if out.Reason == "" {
			out.Reason = err.Error()
		}
		out.Stderr = stderr.String()
		return out
	}

	out.Errors = res.Errors
	out.Actual = res.Actual
	out.ExitCode = res.ExitCode
	if res.Succeed {
		out.Status = report.Pass
	} else {
		out.Status = report.Fail
	}
	if tripped {
		out.Reason = killReason(ctx, 0, true)
	}
	if out.Status != report.Pass {
		out.Stderr = stderr.String()
	}
	e.logger().Info("console case finished", "case", c.Name, "status", out.Status, "errors", len(out.Errors))
	return out
}
