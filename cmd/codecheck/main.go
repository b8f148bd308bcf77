// Command codecheck runs test frameworks and console programs and
// reports structured results, from the command line or as an MCP server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck"
	"github.com/deixis/codecheck/internal/config"
	ccmcp "github.com/deixis/codecheck/internal/mcp"
	"github.com/deixis/codecheck/internal/metrics"
	"github.com/deixis/codecheck/internal/report"
	"github.com/deixis/codecheck/internal/workflow"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mcp":
		err = mcpMain(args)
	case "check":
		err = checkMain(args)
	case "test":
		err = testMain(args)
	case "console":
		err = consoleMain(args)
	case "frameworks":
		err = frameworksMain(args)
	case "version":
		fmt.Println(codecheck.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "codecheck: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if errors.Is(err, errNotPassed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "codecheck: %v\n", err)
		os.Exit(1)
	}
}

// errNotPassed makes main exit 1 once the run has been printed.
var errNotPassed = errors.New("not passed")

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: codecheck <command> [flags] [args]

Commands:
  check       Run every test suite and console case in .codecheck
  test        Run one test framework or configured suite
  console     Verify a console program against scripted input
  frameworks  List supported test frameworks and whether they are installed
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "codecheck <command> -h" for command-specific flags.`)
}

// common holds the flags shared by every run command.
type common struct {
	logLevel *string
	timeout  *time.Duration
	json     *bool
	echo     *bool
}

func commonFlags(fs *flag.FlagSet) *common {
	return &common{
		logLevel: fs.String("log-level", "", "log level: debug, info, warn, error (default $CODECHECK_LOG_LEVEL or warn)"),
		timeout:  fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)"),
		json:     fs.Bool("json", false, "output results as JSON"),
		echo:     fs.Bool("echo", false, "mirror child output to the terminal"),
	}
}

// newLogger builds the process-wide logger. The flag wins over the
// environment; unknown levels fall back to warn.
func newLogger(level string) *log.Logger {
	if level == "" {
		level = os.Getenv("CODECHECK_LOG_LEVEL")
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.WarnLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "codecheck",
		Level:  lvl,
	})
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090); also serves /metrics")
	runsDir := fs.String("runs", "", "directory for stored runs (default: a temp directory)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(ccmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, newLogger(*logLevel), *httpAddr, *runsDir)
}

func serve(ctx context.Context, logger *log.Logger, httpAddr, runsDir string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := report.NewLRUStore(5, report.NewDiskStore(runsDir))
	server := ccmcp.NewServer(loaded, store, workspace, logger)

	if httpAddr != "" {
		return serveHTTP(ctx, logger, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, logger *log.Logger, server *mcpsdk.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- check ---

func checkMain(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(c)
	if err != nil {
		return err
	}

	rr, err := eng.Check(ctx)
	if rr == nil {
		return fmt.Errorf("check: %w", err)
	}
	if werr := writeRun(os.Stdout, rr, *c.json); werr != nil {
		return werr
	}
	return outcome(rr, err)
}

// --- test ---

func testMain(args []string) error {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	c := commonFlags(fs)
	dir := fs.String("dir", "", "directory to run in, relative to the project root")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: codecheck test [flags] <suite|framework> [framework args...]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(c)
	if err != nil {
		return err
	}

	name := fs.Arg(0)
	suite, err := eng.Suite(name)
	if err != nil {
		suite = config.TestSuiteConfig{Framework: name}
	}
	if fs.NArg() > 1 {
		suite.Args = fs.Args()[1:]
	}
	if *dir != "" {
		suite.Dir = *dir
	}
	return printRun(ctx, eng.Test(ctx, suite), *c.json)
}

// --- console ---

func consoleMain(args []string) error {
	fs := flag.NewFlagSet("console", flag.ExitOnError)
	c := commonFlags(fs)
	dir := fs.String("dir", "", "directory to run in, relative to the project root")
	caseName := fs.String("case", "", "run a console case configured in .codecheck")
	inputFile := fs.String("input", "", "file whose lines are written to stdin")
	expectedFile := fs.String("expected", "", "file holding the expected stdout lines")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: codecheck console [flags] -case <name> | <command> [args...]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(c)
	if err != nil {
		return err
	}

	var cc config.ConsoleCaseConfig
	switch {
	case *caseName != "":
		if cc, err = eng.ConsoleCase(*caseName); err != nil {
			return err
		}
	case fs.NArg() > 0:
		cc = config.ConsoleCaseConfig{Command: fs.Arg(0), Dir: *dir}
		if fs.NArg() > 1 {
			cc.Args = fs.Args()[1:]
		}
		if cc.Input, err = readLines(*inputFile); err != nil {
			return err
		}
		if cc.Expected, err = readLines(*expectedFile); err != nil {
			return err
		}
	default:
		fs.Usage()
		os.Exit(2)
	}
	return printRun(ctx, eng.Console(ctx, cc), *c.json)
}

// readLines returns the lines of path, or nil for an empty path.
func readLines(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// --- frameworks ---

func frameworksMain(args []string) error {
	fs := flag.NewFlagSet("frameworks", flag.ExitOnError)
	c := commonFlags(fs)
	probe := fs.Bool("probe", false, "run each installed framework to report its version")
	_ = fs.Parse(args)

	eng, err := newEngine(c)
	if err != nil {
		return err
	}
	infos := eng.Frameworks(context.Background(), *probe)

	if *c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for _, f := range infos {
		status := "not installed (" + f.Install + ")"
		if f.Available {
			status = f.Path
			if f.Version != "" {
				status += "  " + f.Version
			}
		}
		fmt.Printf("  %-14s %-14s %s\n", f.Name, f.Command, status)
	}
	return nil
}

// --- shared ---

func newEngine(c *common) (*workflow.Engine, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if *c.timeout > 0 {
		cfg.RawTimeout = c.timeout.String()
	}
	if *c.echo {
		cfg.Echo = true
	}

	logger := newLogger(*c.logLevel)
	if loaded.Path != "" {
		logger.Debug("loaded config", "path", loaded.Path)
	}
	return workflow.New(cfg, workspace, loaded.RepoRoot, logger), nil
}

// printRun writes rr to stdout and reports how the run ended.
func printRun(ctx context.Context, rr *report.RunResult, asJSON bool) error {
	if err := writeRun(os.Stdout, rr, asJSON); err != nil {
		return err
	}
	return outcome(rr, ctx.Err())
}

func writeRun(w io.Writer, rr *report.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rr)
	}
	_, err := io.WriteString(w, workflow.Format(rr))
	return err
}

// outcome is nil only for a complete run where everything passed. An
// interrupted run is an error even when the entries that ran passed.
func outcome(rr *report.RunResult, runErr error) error {
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if !rr.Passed() {
		return errNotPassed
	}
	return nil
}
