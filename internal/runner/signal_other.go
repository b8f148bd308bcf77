//go:build !unix

package runner

import (
	"os"
	"os/exec"
)

func isolate(*exec.Cmd) {}

func signalTree(proc *os.Process, sig os.Signal) error {
	return proc.Signal(sig)
}
