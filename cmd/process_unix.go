//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// isProcessAlive reports whether a process with the given PID is still
// running. Signal 0 sends nothing but fails with ESRCH when the process is
// gone; EPERM means it exists but belongs to someone else, which still
// counts as alive for lock staleness.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
