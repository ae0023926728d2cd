package callbacks

import "sync"

// Recorder keeps a copy of every captured block. With a positive Limit only
// the most recent Limit samples are kept, in a ring of that size.
type Recorder struct {
	mu    sync.Mutex
	track []int32
	pos   int // next write in track once it holds Limit samples
	Limit int
}

func (r *Recorder) Update(in, out []int32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Limit <= 0 {
		r.track = append(r.track, in...)
		return
	}
	if r.track == nil {
		r.track = make([]int32, 0, r.Limit)
	}
	if len(in) > r.Limit {
		in = in[len(in)-r.Limit:]
	}

	// fill up to Limit before wrapping
	if n := min(r.Limit-len(r.track), len(in)); n > 0 {
		r.track = append(r.track, in[:n]...)
		in = in[n:]
	}
	for len(in) > 0 {
		n := copy(r.track[r.pos:], in)
		in = in[n:]
		r.pos = (r.pos + n) % r.Limit
	}
}

// Track returns a copy of the recorded samples, oldest first.
func (r *Recorder) Track() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int32, 0, len(r.track))
	out = append(out, r.track[r.pos:]...)
	return append(out, r.track[:r.pos]...)
}
