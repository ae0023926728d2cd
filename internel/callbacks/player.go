package callbacks

import "sync"

// Player writes Track to the device output once, then silence.
type Player struct {
	mu    sync.Mutex
	idx   int
	Track []int32
}

func (p *Player) Update(in, out []int32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := copy(out, p.Track[p.idx:])
	p.idx += i
	for ; i < len(out); i++ {
		out[i] = 0
	}
}

// Done reports whether the whole track has been played.
func (p *Player) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx == len(p.Track)
}

func (p *Player) Reset() {
	p.mu.Lock()
	p.idx = 0
	p.mu.Unlock()
}
