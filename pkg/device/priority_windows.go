//go:build windows

package device

import "golang.org/x/sys/windows"

// RaisePriority moves the process to the high priority class so audio
// callbacks are not starved.
func RaisePriority() error {
	return windows.SetPriorityClass(windows.CurrentProcess(), windows.HIGH_PRIORITY_CLASS)
}
