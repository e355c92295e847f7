//go:build windows

package cmd

import (
	"golang.org/x/sys/windows"
)

// isProcessAlive reports whether a process with the given PID is still
// running by opening it with the minimum query access right (available
// since Windows Vista).
func isProcessAlive(pid int) bool {
	const processQueryLimitedInformation = 0x1000

	handle, err := windows.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}
