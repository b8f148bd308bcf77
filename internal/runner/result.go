package runner

// Result holds the output of a command execution.
type Result struct {
	RunID     string // unique identifier for this run
	ExitCode  int    // process exit code, -1 when killed by a signal
	Stdout    []byte // captured stdout lines (may be truncated)
	Stderr    []byte // captured stderr lines (may be truncated)
	Truncated bool   // true if output exceeded the size cap
	TimedOut  bool   // true if the process was killed at the deadline
}
