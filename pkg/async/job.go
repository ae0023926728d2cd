package async

// Job runs f on its own goroutine. The returned channel receives the error
// f returned and is closed afterwards.
func Job(f func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- f()
	}()
	return done
}
