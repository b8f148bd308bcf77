package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/codecheck/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a cc_check, cc_test or cc_console result"`
	Name  string `json:"name" jsonschema:"name of a test suite or console case in that run"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Name == "" {
		return errorResult("name is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	suite, cc, ok := report.Lookup(result, params.Name)
	if !ok {
		return errorResult(fmt.Sprintf("No suite or console case named %q in run %s (%s).", params.Name, params.RunID, result.Kind))
	}

	return textResult(formatInspectOutput(result, suite, cc, report.ByName(result, params.Name)))
}

func formatInspectOutput(rr *report.RunResult, suite *report.SuiteResult, cc *report.ConsoleResult, diagnostics []report.Diagnostic) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Kind)

	if suite != nil {
		fmt.Fprintf(&b, "%s (%s): %s\n", suite.Name, suite.Framework, suite.Status)
		if suite.Command != "" {
			fmt.Fprintf(&b, "Command: %s\n", suite.Command)
		}
		fmt.Fprintf(&b, "Passed: %d, Failed: %d, Exit code: %d\n", suite.Tally.Success, suite.Tally.Failure, suite.ExitCode)
	} else {
		fmt.Fprintf(&b, "%s (console): %s\n", cc.Name, cc.Status)
		fmt.Fprintf(&b, "Command: %s\n", cc.Command)
		fmt.Fprintf(&b, "Lines printed: %d, Exit code: %d\n", len(cc.Actual), cc.ExitCode)
	}

	if len(diagnostics) == 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "No diagnostics: this entry passed.")
		return b.String()
	}

	fmt.Fprintln(&b)
	for _, d := range diagnostics {
		tag := d.Source
		if d.Detail != "" {
			tag = d.Source + "/" + d.Detail
		}
		if d.Line > 0 {
			fmt.Fprintf(&b, "line %d: ", d.Line)
		}
		fmt.Fprintf(&b, "[%s] %s\n", tag, firstLine(d.Message))
		if d.Source == "console" && d.Output != "" {
			fmt.Fprintf(&b, "    diff: %s\n", d.Output)
		}
	}

	// For suites, include the captured output tail.
	for _, d := range diagnostics {
		if d.Source == "test" && d.Output != "" {
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, "Output:")
			for _, line := range strings.Split(strings.TrimRight(d.Output, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	if cc != nil && cc.Stderr != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stderr:")
		for _, line := range strings.Split(cc.Stderr, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	if cc != nil && len(cc.Actual) > 0 && cc.Status != report.Pass {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Actual output:")
		for i, line := range cc.Actual {
			fmt.Fprintf(&b, "  %3d| %s\n", i+1, line)
		}
	}

	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
