//go:build windows

package cli

import (
	"errors"
	"os"
)

// isProcessRunning reports whether pid still exists. Interrupt is not
// delivered on Windows; Signal only returns ErrProcessDone once the process
// has exited.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(os.Interrupt)
	return !errors.Is(err, os.ErrProcessDone)
}

// stopProcess kills the process; there is no SIGTERM on Windows.
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
