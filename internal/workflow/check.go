package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/report"
	"github.com/google/uuid"
)

// ErrNothingToRun is returned by Check when the configuration names no
// suites or console cases.
var ErrNothingToRun = errors.New("no tests or console cases configured in " + config.FileName)

// Check runs every configured test suite and console case in order.
// Unlike a fail-fast pipeline, every entry runs so the report is
// complete; the returned RunResult has one entry per configured item.
func (e *Engine) Check(ctx context.Context) (*report.RunResult, error) {
	if len(e.Config.Tests) == 0 && len(e.Config.Console) == 0 {
		return nil, ErrNothingToRun
	}
	rr := &report.RunResult{ID: uuid.New().String(), Kind: report.Check}

	for _, s := range e.Config.Tests {
		if err := ctx.Err(); err != nil {
			return rr, err
		}
		rr.Suites = append(rr.Suites, e.RunSuite(ctx, s))
	}
	for _, c := range e.Config.Console {
		if err := ctx.Err(); err != nil {
			return rr, err
		}
		rr.Console = append(rr.Console, e.RunConsole(ctx, c))
	}

	e.logger().Info("check finished", "run", rr.ID, "summary", report.Summary(rr))
	return rr, nil
}

// Test runs a single suite and wraps it in a test run.
func (e *Engine) Test(ctx context.Context, s config.TestSuiteConfig) *report.RunResult {
	return &report.RunResult{
		ID:     uuid.New().String(),
		Kind:   report.Test,
		Suites: []report.SuiteResult{e.RunSuite(ctx, s)},
	}
}

// Console verifies a single interaction and wraps it in a console run.
func (e *Engine) Console(ctx context.Context, c config.ConsoleCaseConfig) *report.RunResult {
	if c.Name == "" {
		c.Name = "console"
	}
	return &report.RunResult{
		ID:      uuid.New().String(),
		Kind:    report.Console,
		Console: []report.ConsoleResult{e.RunConsole(ctx, c)},
	}
}

// Suite returns the configured suite called name.
func (e *Engine) Suite(name string) (config.TestSuiteConfig, error) {
	for _, s := range e.Config.Tests {
		if s.Name == name {
			return s, nil
		}
	}
	return config.TestSuiteConfig{}, fmt.Errorf("no test suite named %q in %s", name, config.FileName)
}

// ConsoleCase returns the configured console case called name.
func (e *Engine) ConsoleCase(name string) (config.ConsoleCaseConfig, error) {
	for _, c := range e.Config.Console {
		if c.Name == name {
			return c, nil
		}
	}
	return config.ConsoleCaseConfig{}, fmt.Errorf("no console case named %q in %s", name, config.FileName)
}
