//go:build windows

package lock

import "os"

// processAlive reports whether a process with the given pid exists.
// On Windows, FindProcess fails for pids that are no longer running.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer p.Release()
	return true
}
