package async

import (
	"bufio"
	"context"
	"io"
)

// Lines reads r line by line on its own goroutine. The channel is closed at
// EOF, on a read error, or once ctx is done. Trailing "\r" is stripped.
//
// The reading goroutine may stay blocked in r until the next line arrives;
// callers select on ctx.Done() alongside the channel instead of waiting for it.
func Lines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
