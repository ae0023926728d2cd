package layer

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"Aethertalk/internel/callbacks"
	"Aethertalk/pkg/async"
	"Aethertalk/pkg/device"
	"Aethertalk/pkg/modem"
	"Aethertalk/pkg/observe"

	"github.com/sirupsen/logrus"
)

const (
	defaultInputBufferSize   = 1024
	defaultOutputBufferSize  = 16
	defaultReceiveBufferSize = 16
)

// PhysicalLayer moves audio between a device and a codec session. The device
// callback only touches channels; all session work happens in Step, on the
// caller's goroutine.
type PhysicalLayer struct {
	Device device.Device

	InputBufferSize   int // capture blocks queued between steps
	OutputBufferSize  int // waveforms queued for playback
	ReceiveBufferSize int // decoded payloads kept for Receive

	Report   io.Writer           // gets a "Received: ..." line per payload, may be nil
	Recorder *callbacks.Recorder // taps the capture stream, may be nil
	Metrics  *observe.Metrics

	capture  chan []int32
	playback chan []int32
	received chan []byte

	current []int32 // waveform being played, device goroutine only

	dropped      atomic.Int64 // not yet reported
	droppedTotal atomic.Int64
}

func (p *PhysicalLayer) Open() {
	if p.InputBufferSize <= 0 {
		p.InputBufferSize = defaultInputBufferSize
	}
	if p.OutputBufferSize <= 0 {
		p.OutputBufferSize = defaultOutputBufferSize
	}
	if p.ReceiveBufferSize <= 0 {
		p.ReceiveBufferSize = defaultReceiveBufferSize
	}
	p.capture = make(chan []int32, p.InputBufferSize)
	p.playback = make(chan []int32, p.OutputBufferSize)
	p.received = make(chan []byte, p.ReceiveBufferSize)

	p.Device.Start(p.callback)
}

// Close stops the device. The layer must not be stepped afterwards.
func (p *PhysicalLayer) Close() {
	p.Device.Stop()
}

func (p *PhysicalLayer) callback(in, out []int32) {
	if p.Recorder != nil {
		p.Recorder.Update(in, out)
	}

	block := make([]int32, len(in))
	copy(block, in)
	select {
	case p.capture <- block:
	default:
		p.dropped.Add(1)
		p.droppedTotal.Add(1)
	}

	p.write(out)
}

// write consumes the playback queue into out, padding with silence.
func (p *PhysicalLayer) write(out []int32) {
	i := 0
	for i < len(out) {
		if p.current == nil {
			select {
			case p.current = <-p.playback:
			default:
			}
			if p.current == nil {
				break
			}
		}

		n := copy(out[i:], p.current)
		i += n
		p.current = p.current[n:]
		if len(p.current) == 0 {
			p.current = nil
		}
	}

	for ; i < len(out); i++ {
		out[i] = 0
	}
}

// Step decodes every queued capture block with s, then hands a pending
// transmission of s to playback. The caller serializes access to s.
func (p *PhysicalLayer) Step(ctx context.Context, s *modem.Session) {
	if n := p.dropped.Swap(0); n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "PhysicalLayer.Step",
			"blocks":   n,
		}).Warn("Capture blocks dropped")
		p.Metrics.RecordDropped(ctx, n)
	}

	format := s.Parameters().SampleFormatInp
drain:
	for {
		select {
		case block := <-p.capture:
			if !s.Decode(modem.Int32ToBytes(block, format)) {
				logrus.WithField("function", "PhysicalLayer.Step").Debug("Capture block rejected by the session")
				continue
			}
			if s.RxDataLength() > 0 {
				p.deliver(ctx, s.RxData())
			}
		default:
			break drain
		}
	}

	if !s.TxPending() {
		return
	}
	n := s.Encode()
	samples := modem.BytesToInt32(s.TxWaveform()[:n], s.Parameters().SampleFormatOut)
	select {
	case p.playback <- samples:
		s.TxDone()
		logrus.WithFields(logrus.Fields{
			"function": "PhysicalLayer.Step",
			"samples":  len(samples),
		}).Debug("Waveform queued for playback")
	default:
		// playback queue full, retry on the next step
	}
}

func (p *PhysicalLayer) deliver(ctx context.Context, data []byte) {
	payload := append([]byte(nil), data...)
	if p.Report != nil {
		fmt.Fprintf(p.Report, "Received: %s\n", payload)
	}
	p.Metrics.RecordReceived(ctx)

	select {
	case p.received <- payload:
	default:
		logrus.WithField("function", "PhysicalLayer.deliver").Warn("Receive buffer full, payload discarded")
	}
}

// Receive blocks until a payload is decoded or ctx is done.
func (p *PhysicalLayer) Receive(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-p.received:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveAsync delivers the next payload, or nil once ctx is done.
func (p *PhysicalLayer) ReceiveAsync(ctx context.Context) <-chan []byte {
	return async.Promise(func() []byte {
		payload, _ := p.Receive(ctx)
		return payload
	})
}

// Dropped returns the number of capture blocks lost so far.
func (p *PhysicalLayer) Dropped() int64 {
	return p.droppedTotal.Load()
}
