//go:build !windows

package device

import "fmt"

func openASIO(Config) (Device, error) {
	return nil, fmt.Errorf("%w: asio requires windows", ErrUnsupportedBackend)
}
