//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !windows

package device

func RaisePriority() error {
	return ErrUnsupportedBackend
}
