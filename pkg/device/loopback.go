package device

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Loopback feeds every output block back as the next input block.
type Loopback struct {
	SampleRate float64 // paces the callbacks in samples per second, 0 means no limit
	Noise      float64 // uniform noise added to the input, fraction of full scale
	Seed       uint64

	done    chan struct{}
	stopped sync.WaitGroup
}

func (d *Loopback) Start(callback func([]int32, []int32)) {
	d.done = make(chan struct{})
	d.stopped.Add(1)
	go func() {
		defer d.stopped.Done()

		var buf = make([][]int32, 2)
		buf[0] = alloci32(BufferSize)
		buf[1] = alloci32(BufferSize)
		noise := rand.New(rand.NewSource(d.Seed))

		swap := true
		update := func() {
			in, out := buf[0], buf[1]
			if !swap {
				in, out = out, in
			}
			if d.Noise > 0 {
				noisei32(noise, in, d.Noise)
			}
			callback(in, out)
			swap = !swap
		}

		if d.SampleRate == 0 {
			for {
				select {
				case <-d.done:
					return
				default:
					update()
				}
			}
		}

		ticker := time.NewTicker(blockPeriod(d.SampleRate))
		defer ticker.Stop()
		for {
			select {
			case <-d.done:
				return
			case <-ticker.C:
				update()
			}
		}
	}()
}

// Stop returns once the callback will no longer be called.
func (d *Loopback) Stop() {
	close(d.done)
	d.stopped.Wait()
}

func blockPeriod(sampleRate float64) time.Duration {
	return time.Duration(float64(time.Second) * BufferSize / sampleRate)
}
