package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type frameworksParams struct {
	Probe bool `json:"probe,omitempty" jsonschema:"also run each installed framework to report its version"`
}

func (h *handler) frameworksHandler(ctx context.Context, req *mcp.CallToolRequest, params frameworksParams) (*mcp.CallToolResult, any, error) {
	eng := h.current()
	return textResult(formatFrameworks(eng, eng.Frameworks(ctx, params.Probe)))
}

func formatFrameworks(eng *workflow.Engine, infos []workflow.FrameworkInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project root: %s\n", eng.RepoRoot)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Frameworks:")
	for _, f := range infos {
		if f.Available {
			fmt.Fprintf(&b, "  %-14s %-14s installed", f.Name, f.Command)
			if f.Version != "" {
				fmt.Fprintf(&b, " (%s)", f.Version)
			}
			fmt.Fprintln(&b)
		} else {
			fmt.Fprintf(&b, "  %-14s %-14s not installed; install: %s\n", f.Name, f.Command, f.Install)
		}
	}

	cfg := eng.Config
	fmt.Fprintln(&b)
	if len(cfg.Tests) == 0 && len(cfg.Console) == 0 {
		fmt.Fprintf(&b, "No suites or console cases configured in %s.\n", config.FileName)
		return b.String()
	}
	if len(cfg.Tests) > 0 {
		fmt.Fprintln(&b, "Configured suites:")
		for _, s := range cfg.Tests {
			fmt.Fprintf(&b, "  %s: %s %s\n", s.Name, s.Framework, strings.Join(s.Args, " "))
		}
	}
	if len(cfg.Console) > 0 {
		fmt.Fprintln(&b, "Configured console cases:")
		for _, c := range cfg.Console {
			fmt.Fprintf(&b, "  %s: %s (%d input lines, %d expected)\n", c.Name, c.Command, len(c.Input), len(c.Expected))
		}
	}
	return b.String()
}
