package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/report"
	"github.com/deixis/codecheck/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type checkParams struct{}

func (h *handler) checkHandler(ctx context.Context, req *mcp.CallToolRequest, _ checkParams) (*mcp.CallToolResult, any, error) {
	rr, err := h.current().Check(ctx)
	if errors.Is(err, workflow.ErrNothingToRun) {
		return errorResult(fmt.Sprintf("%v. Add tests or console entries, or use cc_test / cc_console directly.", err))
	}
	if err != nil && rr == nil {
		return errorResult(fmt.Sprintf("check failed: %v", err))
	}
	h.save(rr)
	return textResult(formatRun(rr))
}

type testParams struct {
	Suite     string   `json:"suite,omitempty" jsonschema:"name of a test suite configured in .codecheck"`
	Framework string   `json:"framework,omitempty" jsonschema:"framework name (e.g. go, mocha, rspec, phpunit) or a test command; ignored when suite is set"`
	Args      []string `json:"args,omitempty" jsonschema:"extra arguments passed to the framework, one per element"`
	Dir       string   `json:"dir,omitempty" jsonschema:"directory to run in, relative to the project root"`
}

func (h *handler) testHandler(ctx context.Context, req *mcp.CallToolRequest, params testParams) (*mcp.CallToolResult, any, error) {
	eng := h.current()

	var suite config.TestSuiteConfig
	switch {
	case params.Suite != "":
		s, err := eng.Suite(params.Suite)
		if err != nil {
			return errorResult(err.Error())
		}
		suite = s
	case params.Framework != "":
		suite = config.TestSuiteConfig{Framework: params.Framework, Args: params.Args, Dir: params.Dir}
	default:
		return errorResult("either suite or framework is required")
	}

	rr := eng.Test(ctx, suite)
	h.save(rr)
	return textResult(formatRun(rr))
}

type consoleParams struct {
	Case     string   `json:"case,omitempty" jsonschema:"name of a console case configured in .codecheck"`
	Command  string   `json:"command,omitempty" jsonschema:"program to run, split like a shell command line without expansion; ignored when case is set"`
	Dir      string   `json:"dir,omitempty" jsonschema:"directory to run in, relative to the project root"`
	Input    []string `json:"input,omitempty" jsonschema:"lines written to stdin in order"`
	Expected []string `json:"expected,omitempty" jsonschema:"lines the program must print to stdout in order"`
}

func (h *handler) consoleHandler(ctx context.Context, req *mcp.CallToolRequest, params consoleParams) (*mcp.CallToolResult, any, error) {
	eng := h.current()

	var c config.ConsoleCaseConfig
	switch {
	case params.Case != "":
		cc, err := eng.ConsoleCase(params.Case)
		if err != nil {
			return errorResult(err.Error())
		}
		c = cc
	case params.Command != "":
		c = config.ConsoleCaseConfig{Command: params.Command, Dir: params.Dir, Input: params.Input, Expected: params.Expected}
	default:
		return errorResult("either case or command is required")
	}

	rr := eng.Console(ctx, c)
	h.save(rr)
	return textResult(formatRun(rr))
}

// formatRun renders rr and, when something did not pass, points at
// cc_inspect for the first failing entry.
func formatRun(rr *report.RunResult) string {
	var b strings.Builder
	b.WriteString(workflow.Format(rr))

	diags := report.Diagnostics(rr)
	if len(diags) == 0 {
		return b.String()
	}
	fmt.Fprintln(&b)
	first := diags[0]
	if first.Status == report.Unavailable {
		fmt.Fprintf(&b, "Action: install the missing tool and re-run.\n")
	}
	fmt.Fprintf(&b, "Inspect with cc_inspect(run_id=%q, name=%q).\n", rr.ID, first.Name)
	return b.String()
}
