package duplex

import (
	"context"
	"time"

	layer "Aethertalk/pkg/layers"
	"Aethertalk/pkg/modem"
	"Aethertalk/pkg/observe"
)

const DefaultQuantum = time.Millisecond

// Scheduler paces the I/O loop: every quantum it steps the physical layer
// with the live session under the live lock.
type Scheduler struct {
	Live    *Live
	Layer   *layer.PhysicalLayer
	Quantum time.Duration
	Metrics *observe.Metrics
}

// Run returns once ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	quantum := s.Quantum
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	ticker := time.NewTicker(quantum)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			s.Live.Do(func(session *modem.Session) {
				s.Layer.Step(ctx, session)
			})
			s.Metrics.RecordStep(ctx, time.Since(start))
		}
	}
}
