package async

// Gather waits on every channel in order and delivers their values together.
// A closed channel contributes the zero value.
func Gather[R any](cs ...<-chan R) <-chan []R {
	return Promise(func() []R {
		results := make([]R, len(cs))
		for i, c := range cs {
			results[i] = <-c
		}
		return results
	})
}

// FirstError waits for every job and returns the first non-nil error.
func FirstError(jobs ...<-chan error) error {
	for _, err := range <-Gather(jobs...) {
		if err != nil {
			return err
		}
	}
	return nil
}
