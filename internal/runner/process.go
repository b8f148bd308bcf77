package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck/internal/metrics"
	"github.com/kballard/go-shellquote"
)

// State is the lifecycle state of a Process.
type State int32

const (
	NotStarted State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned by Start when the Process has already
// been started. A Process represents exactly one execution.
var ErrAlreadyStarted = errors.New("process already started")

// SpawnError reports that the executable could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Options configures a Process.
type Options struct {
	// Command is either the full command line (when Args is nil) or the
	// executable to run verbatim.
	Command string
	Args    []string
	Dir     string
	// Env is overlaid on the ambient environment; its keys win.
	Env map[string]string
	// Stdin lines are written to the child in order, each followed by a
	// newline, after which stdin is closed.
	Stdin []string
	// Echo mirrors raw child output to Stdout and Stderr.
	Echo   bool
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
	Logger *log.Logger
}

// Process owns a single execution of a child process and streams its
// output as lines.
//
// Handlers must be registered before Start. For a given Process they
// are never invoked concurrently: stdout and stderr are read in
// parallel but delivery is serialised. The end handlers run once,
// after both streams have been flushed.
type Process struct {
	path   string
	args   []string
	dir    string
	env    []string
	stdin  []string
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger

	echo   atomic.Bool
	echoMu sync.Mutex

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	exitCode int
	exited   bool
	spawnErr error
	onLine   []func(Line)
	onEnd    []func(int)

	deliverMu sync.Mutex
	done      chan struct{}
}

// New builds a Process from opts. The ambient environment is captured
// here, not at Start.
func New(opts Options) (*Process, error) {
	path, args, err := splitCommand(opts.Command, opts.Args)
	if err != nil {
		return nil, err
	}

	p := &Process{
		path:   path,
		args:   args,
		dir:    opts.Dir,
		env:    mergeEnv(os.Environ(), opts.Env),
		stdin:  slices.Clone(opts.Stdin),
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	if p.stdout == nil {
		p.stdout = os.Stdout
	}
	if p.stderr == nil {
		p.stderr = os.Stderr
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}
	p.echo.Store(opts.Echo)
	return p, nil
}

func splitCommand(command string, args []string) (string, []string, error) {
	if args != nil {
		if strings.TrimSpace(command) == "" {
			return "", nil, errors.New("empty command")
		}
		return command, slices.Clone(args), nil
	}
	words, err := shellquote.Split(command)
	if err != nil {
		return "", nil, fmt.Errorf("parsing command %q: %w", command, err)
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], words[1:], nil
}

// mergeEnv returns ambient with overlay applied. Neither input is modified.
func mergeEnv(ambient []string, overlay map[string]string) []string {
	merged := make(map[string]string, len(ambient)+len(overlay))
	order := make([]string, 0, len(ambient)+len(overlay))
	for _, kv := range ambient {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}
	for _, k := range slices.Sorted(maps.Keys(overlay)) {
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = overlay[k]
	}
	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// Path returns the executable.
func (p *Process) Path() string { return p.path }

// Args returns the configured argument vector, excluding arguments
// passed to Start.
func (p *Process) Args() []string { return slices.Clone(p.args) }

// Env returns the merged environment the child will receive.
func (p *Process) Env() []string { return slices.Clone(p.env) }

// CommandLine renders the configured invocation for display.
func (p *Process) CommandLine() string {
	return shellquote.Join(append([]string{p.path}, p.args...)...)
}

// SetEcho toggles mirroring of child output to the controlling streams.
// It may be called while the process runs.
func (p *Process) SetEcho(on bool) { p.echo.Store(on) }

// Echo reports whether output is mirrored.
func (p *Process) Echo() bool { return p.echo.Load() }

// OnLine registers fn to receive every output line.
func (p *Process) OnLine(fn func(Line)) {
	if fn == nil {
		panic("runner: nil line handler")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != NotStarted {
		panic("runner: OnLine called after Start")
	}
	p.onLine = append(p.onLine, fn)
}

// OnEnd registers fn to receive the exit code once the process has
// ended and its output has been fully delivered.
func (p *Process) OnEnd(fn func(exitCode int)) {
	if fn == nil {
		panic("runner: nil end handler")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != NotStarted {
		panic("runner: OnEnd called after Start")
	}
	p.onEnd = append(p.onEnd, fn)
}

// Start launches the process with the configured arguments followed by
// extra. Nested slices in extra are flattened. Start does not wait for
// the process; use OnEnd, Done or Wait.
func (p *Process) Start(extra ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != NotStarted {
		return ErrAlreadyStarted
	}

	args := append(slices.Clone(p.args), NormalizeArgs(extra...)...)
	cmd := exec.Command(p.path, args...)
	cmd.Dir = p.dir
	cmd.Env = p.env
	isolate(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.failSpawn(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return p.failSpawn(err)
	}
	var stdin io.WriteCloser
	if len(p.stdin) > 0 {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return p.failSpawn(err)
		}
	}

	if err := cmd.Start(); err != nil {
		return p.failSpawn(err)
	}

	p.cmd = cmd
	p.state = Running
	metrics.RecordProcessStarted()
	p.logger.Debug("process started", "command", p.path, "args", args, "dir", p.dir, "pid", cmd.Process.Pid)

	if stdin != nil {
		go p.feed(stdin)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.pump(&wg, Stdout, stdout, p.stdout)
	go p.pump(&wg, Stderr, stderr, p.stderr)
	go p.reap(&wg, cmd)
	return nil
}

func (p *Process) failSpawn(err error) error {
	p.state = Ended
	p.spawnErr = &SpawnError{Command: p.path, Err: err}
	close(p.done)
	metrics.RecordSpawnError()
	p.logger.Error("process failed to start", "command", p.path, "err", err)
	return p.spawnErr
}

func (p *Process) feed(w io.WriteCloser) {
	defer w.Close()
	for _, in := range p.stdin {
		if _, err := io.WriteString(w, in+"\n"); err != nil {
			// The child closed stdin or exited; remaining input is dropped.
			p.logger.Debug("stdin closed early", "command", p.path, "err", err)
			return
		}
	}
}

// pump copies one output stream through a LineSplitter.
func (p *Process) pump(wg *sync.WaitGroup, stream Stream, r io.Reader, mirror io.Writer) {
	defer wg.Done()
	splitter := NewLineSplitter(stream, p.dispatch)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if p.echo.Load() {
				p.echoMu.Lock()
				_, _ = mirror.Write(chunk)
				p.echoMu.Unlock()
			}
			_, _ = splitter.Write(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("output stream read failed", "stream", stream, "err", err)
			}
			break
		}
	}
	_ = splitter.Close()
}

func (p *Process) dispatch(l Line) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	for _, fn := range p.onLine {
		fn(l)
	}
}

// reap waits for both streams to drain, collects the exit status and
// fires the end handlers.
func (p *Process) reap(wg *sync.WaitGroup, cmd *exec.Cmd) {
	wg.Wait()
	err := cmd.Wait()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			p.logger.Warn("process wait failed", "command", p.path, "err", err)
		}
	}

	p.mu.Lock()
	p.state = Ended
	p.exitCode = code
	p.exited = true
	p.cmd = nil
	p.mu.Unlock()

	p.logger.Debug("process ended", "command", p.path, "exit_code", code)

	p.deliverMu.Lock()
	for _, fn := range p.onEnd {
		fn(code)
	}
	p.deliverMu.Unlock()
	close(p.done)
}

// Kill sends sig to the process and the children it started, if it is
// running. It is a no-op before Start and after the process has ended. Delivery is advisory: output
// may still arrive before the end handlers fire.
func (p *Process) Kill(sig os.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	running := p.state == Running
	p.mu.Unlock()
	if !running || cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := signalTree(cmd.Process, sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("signalling %s: %w", p.path, err)
	}
	metrics.RecordKill(sig.String())
	p.logger.Info("signal sent", "command", p.path, "signal", sig.String())
	return nil
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pid returns the OS process id while running, or 0.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the exit code once the process has ended. A process
// terminated by a signal reports -1.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// Done is closed after the end handlers have run, or immediately after a
// failed spawn.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process ends or ctx is done. It returns the
// spawn error for a process that never started.
func (p *Process) Wait(ctx context.Context) (int, error) {
	if p.State() == NotStarted {
		return -1, errors.New("process not started")
	}
	select {
	case <-p.done:
	case <-ctx.Done():
		return -1, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spawnErr != nil {
		return -1, p.spawnErr
	}
	return p.exitCode, nil
}

// NormalizeArgs flattens parts into a flat argument list. Strings are
// taken as-is, slices are flattened recursively and anything else is
// formatted with fmt.Sprint.
func NormalizeArgs(parts ...any) []string {
	var out []string
	for _, part := range parts {
		switch v := part.(type) {
		case nil:
		case string:
			out = append(out, v)
		case []string:
			out = append(out, v...)
		case []any:
			out = append(out, NormalizeArgs(v...)...)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
