package async

// Promise runs f on its own goroutine. The result is buffered, so a promise
// nobody waits on does not leak.
func Promise[R any](f func() R) <-chan R {
	out := make(chan R, 1)
	go func() {
		out <- f()
	}()
	return out
}
