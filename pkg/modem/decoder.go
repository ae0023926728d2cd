package modem

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

type DemodulateStateEnum int

const (
	preambleDetection DemodulateStateEnum = iota
	dataExtraction
)

var (
	errInvalidLength = errors.New("invalid payload length")
	errCRC           = errors.New("CRC8 check failed")
)

type rxProtocol struct {
	Protocol
	marker       []float64
	markerEnergy float64
	span         int // offsets searched for the correlation peak after a detection
}

// Demodulator listens for the markers of every enabled protocol in a stream
// of samples at the operating rate and extracts the frames that follow them.
type Demodulator struct {
	Protocols       Protocols
	SamplesPerFrame int
	SampleRate      float64
	PayloadLength   int
	MarkerThreshold float64

	once sync.Once

	demodulateState DemodulateStateEnum
	protocols       []rxProtocol
	maxMarker       int
	minCorrelation  float64 // squared normalized correlation

	buffer []float64
	scan   int // next marker offset to test

	// data extraction
	current   *rxProtocol
	markerPos int
	start     int
	symbols   int
	nibbles   []byte
}

func (d *Demodulator) Reset() {
	d.demodulateState = preambleDetection
	d.protocols = d.protocols[:0]
	d.maxMarker = 0
	for _, p := range d.Protocols.Enabled() {
		marker := markerFor(p, d.SamplesPerFrame, d.SampleRate, 1)
		d.protocols = append(d.protocols, rxProtocol{
			Protocol:     p,
			marker:       marker,
			markerEnergy: energy(marker),
			span:         max(len(marker)/2, 1),
		})
		d.maxMarker = max(d.maxMarker, len(marker))
	}
	t := d.MarkerThreshold
	d.minCorrelation = t * t / (t*t + 1)

	d.buffer = make([]float64, 0)
	d.scan = 0
	d.current = nil
	d.symbols = 0
	d.nibbles = make([]byte, 0)
}

// Demodulate consumes samples and returns every payload completed by them.
func (d *Demodulator) Demodulate(inputSignal []float64) (payloads [][]byte) {
	d.once.Do(d.Reset)

	if len(d.protocols) == 0 {
		return nil
	}

	d.buffer = append(d.buffer, inputSignal...)
	for {
		switch d.demodulateState {
		case preambleDetection:
			if !d.detectPreamble() {
				d.compact()
				return
			}
		case dataExtraction:
			payload, done, err := d.extractData()
			if !done {
				return
			}
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Demodulator.Demodulate",
					"protocol": d.current.Name,
					"error":    err,
				}).Debug("Dropping frame")
				d.scan = d.markerPos + 1
			} else {
				payloads = append(payloads, payload)
				d.scan = d.start + d.symbols*d.symbolLength()
			}
			d.current = nil
			d.demodulateState = preambleDetection
		}
	}
}

// correlation returns the squared normalized correlation between the marker
// of p and the window at offset, or zero when it is negative.
func (d *Demodulator) correlation(p *rxProtocol, offset int) float64 {
	w := d.buffer[offset : offset+len(p.marker)]
	dot := dotProduct(w, p.marker)
	if dot <= 0 {
		return 0
	}
	e := energy(w)
	if e == 0 {
		return 0
	}
	return math.Min(dot*dot/(e*p.markerEnergy), 1)
}

func (d *Demodulator) detectPreamble() bool {
	for d.scan+d.maxMarker <= len(d.buffer) {
		for i := range d.protocols {
			p := &d.protocols[i]
			if d.correlation(p, d.scan) < d.minCorrelation {
				continue
			}

			// a potential start is found, look for the correlation peak
			end := d.scan + p.span
			if end+len(p.marker) > len(d.buffer) {
				return false
			}
			best, bestCorrelation := d.scan, 0.0
			for o := d.scan; o < end; o++ {
				if c := d.correlation(p, o); c > bestCorrelation {
					best, bestCorrelation = o, c
				}
			}

			logrus.WithFields(logrus.Fields{
				"function":    "Demodulator.detectPreamble",
				"protocol":    p.Name,
				"offset":      best,
				"correlation": math.Sqrt(bestCorrelation),
			}).Debug("Marker detected")

			d.current = p
			d.markerPos = best
			d.start = best + len(p.marker)
			d.symbols = 0
			d.nibbles = d.nibbles[:0]
			d.demodulateState = dataExtraction
			return true
		}
		d.scan++
	}
	return false
}

func (d *Demodulator) compact() {
	if d.scan == 0 {
		return
	}
	d.buffer = append(d.buffer[:0], d.buffer[d.scan:]...)
	d.scan = 0
}

func (d *Demodulator) symbolLength() int {
	return d.current.FramesPerTx * d.SamplesPerFrame
}

func (d *Demodulator) extractData() (payload []byte, done bool, err error) {
	p := d.current
	n := d.symbolLength()
	for {
		offset := d.start + d.symbols*n
		if offset+n > len(d.buffer) {
			return nil, false, nil
		}

		window := d.buffer[offset : offset+n]
		for g := range p.TonesPerTx {
			best, bestPower := 0, -1.0
			for v := range binsPerTone {
				power := goertzel(window, p.FreqStart+binsPerTone*g+v, d.SamplesPerFrame)
				if power > bestPower {
					best, bestPower = v, power
				}
			}
			d.nibbles = append(d.nibbles, byte(best))
		}
		d.symbols++

		total, err := d.frameNibbles()
		if err != nil {
			return nil, true, err
		}
		if total > 0 && len(d.nibbles) >= total {
			payload, err = d.receiveFrame(total)
			return payload, true, err
		}
	}
}

// frameNibbles returns the number of nibbles of the current frame, or zero
// when the length byte has not been received yet.
func (d *Demodulator) frameNibbles() (int, error) {
	if d.PayloadLength > 0 {
		return 2 * (d.PayloadLength + 1), nil
	}
	if len(d.nibbles) < 2 {
		return 0, nil
	}
	length := int(d.nibbles[0]) | int(d.nibbles[1])<<4
	if length == 0 || length > MaxLengthVariable {
		return 0, fmt.Errorf("%w: %d", errInvalidLength, length)
	}
	return 2 * (length + 2), nil
}

func (d *Demodulator) receiveFrame(total int) ([]byte, error) {
	frame := make([]byte, total/2)
	for i := range frame {
		frame[i] = d.nibbles[2*i] | d.nibbles[2*i+1]<<4
	}

	body, crc := frame[:len(frame)-1], frame[len(frame)-1]
	if CRC8(body) != crc {
		return nil, errCRC
	}

	if d.PayloadLength > 0 {
		return body, nil
	}
	return body[1:], nil
}
