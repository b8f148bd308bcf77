// Package mcp provides the codecheck MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck"
	"github.com/deixis/codecheck/internal/config"
	"github.com/deixis/codecheck/internal/report"
	"github.com/deixis/codecheck/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	engine *workflow.Engine
	store  report.Store
	logger *log.Logger
}

// current returns the engine for the active workspace.
func (h *handler) current() *workflow.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

// NewServer creates an MCP server with all codecheck tools registered.
// Child output echo goes to stderr so it never interleaves with a stdio
// transport.
func NewServer(loaded *config.LoadResult, store report.Store, workspace string, logger *log.Logger) *mcp.Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &handler{
		engine: newEngine(loaded, workspace, logger),
		store:  store,
		logger: logger,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "codecheck", Version: codecheck.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_frameworks",
		Description: `List the supported test frameworks, whether each is installed, and the suites and console cases configured in .codecheck.

Set probe=true to also report each installed framework's version.`,
	}, h.frameworksHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_check",
		Description: `Run every test suite and console case configured in .codecheck.

All entries run even when one fails. Each is reported as pass, fail, ambiguous (exit code and
recognised results disagree), unavailable (tool not installed) or error. Results are stored for
drill-down via cc_inspect.`,
	}, h.checkHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_test",
		Description: `Run one test framework and report recognised passes and failures.

Pass suite to run a suite from .codecheck, or framework (e.g. go, mocha, rspec, nosetests) with
optional args and dir. Unknown framework names are run as commands and read with the generic
"N tests, F failures, E errors" summary.`,
	}, h.testHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_console",
		Description: `Run a console program with scripted stdin and compare its stdout line by line.

Pass case to run a case from .codecheck, or command with input and expected lines. Each differing
line is reported once; a missing or extra tail of output is reported as a single error.`,
	}, h.consoleHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_inspect",
		Description: `Drill into a stored run from cc_check, cc_test or cc_console.

Use the run_id from the tool output and the name of a suite or console case. Returns the
recognised counts, captured output tail, and per-line diffs for console mismatches.`,
	}, h.inspectHandler)

	return s
}

func newEngine(loaded *config.LoadResult, workspace string, logger *log.Logger) *workflow.Engine {
	e := workflow.New(loaded.Config, workspace, loaded.RepoRoot, logger)
	e.Stdout = os.Stderr
	e.Stderr = os.Stderr
	return e
}

// updateWorkspaceFromRoots queries the client for MCP roots and swaps in
// an engine for the first file root, reloading its configuration. It is
// called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn("ignoring client root", "root", workspace, "err", err)
		return
	}

	h.mu.Lock()
	h.engine = newEngine(loaded, workspace, h.logger)
	h.mu.Unlock()
	h.logger.Info("workspace updated from client roots", "workspace", workspace, "root", loaded.RepoRoot)
}

// save stores rr for cc_inspect. A failed save only loses drill-down.
func (h *handler) save(rr *report.RunResult) {
	if err := h.store.Save(rr); err != nil {
		h.logger.Warn("storing run failed", "run", rr.ID, "err", err)
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
