package duplex

import (
	"sync"

	"Aethertalk/pkg/modem"
)

// Live guards the session shared by the transmit loop and the I/O loop.
// Every access to the session goes through Do.
type Live struct {
	mu      sync.Mutex
	session *modem.Session
}

func NewLive(s *modem.Session) *Live {
	return &Live{session: s}
}

// Do runs f with exclusive access to the session. f must not block on I/O.
func (l *Live) Do(f func(s *modem.Session)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(l.session)
}

// Close closes the session under the lock.
func (l *Live) Close() {
	l.Do(func(s *modem.Session) { s.Close() })
}
