//go:build linux || darwin || freebsd || netbsd || openbsd

package device

import "golang.org/x/sys/unix"

// RaisePriority lowers the nice value of the process. It needs the
// privilege to do so.
func RaisePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -10)
}
