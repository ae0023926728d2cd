package modem

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

var (
	ErrClosed              = errors.New("session closed")
	ErrNotTransmitter      = errors.New("session cannot transmit")
	ErrPayloadTooLong      = errors.New("payload too long")
	ErrProtocolUnsupported = errors.New("protocol does not fit below the Nyquist frequency")
)

// Session is a stateful codec instance. It is not safe for concurrent use;
// callers serialize access.
type Session struct {
	params    Parameters
	protocols Protocols
	closed    bool

	tx struct {
		protocol Protocol
		payload  []byte
		repeat   int
		pending  bool
		waveform []byte
		encoded  bool
	}

	rx struct {
		demodulator *Demodulator
		resampler   *resampler
		samples     []float64
		data        []byte
	}
}

func New(params Parameters) (*Session, error) {
	s := &Session{}
	if err := s.Prepare(params, true); err != nil {
		return nil, err
	}
	return s, nil
}

// Prepare applies params. With resetState the pending transmission and the
// receiver state are discarded, otherwise only the parameters change and the
// receiver restarts on the next Decode.
func (s *Session) Prepare(params Parameters, resetState bool) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.params = params
	s.protocols = params.RxProtocols
	if s.protocols == nil {
		s.protocols = DefaultProtocols()
	}
	s.closed = false

	if resetState {
		s.tx.payload = nil
		s.tx.pending = false
		s.tx.waveform = nil
		s.tx.encoded = false
		s.rx.data = nil
	}
	s.tx.encoded = false

	s.rx.demodulator = &Demodulator{
		Protocols:       s.protocols,
		SamplesPerFrame: params.SamplesPerFrame,
		SampleRate:      params.SampleRate,
		PayloadLength:   params.PayloadLength,
		MarkerThreshold: params.SoundMarkerThreshold,
	}
	s.rx.resampler = newResampler(params.SampleRateInp, params.SampleRate)

	logrus.WithFields(logrus.Fields{
		"function":          "Session.Prepare",
		"sample_rate":       params.SampleRate,
		"sample_rate_inp":   params.SampleRateInp,
		"sample_rate_out":   params.SampleRateOut,
		"samples_per_frame": params.SamplesPerFrame,
		"payload_length":    params.PayloadLength,
		"marker_threshold":  params.SoundMarkerThreshold,
		"rx_protocols":      len(s.protocols.Enabled()),
		"reset":             resetState,
	}).Debug("Session prepared")

	return nil
}

func (s *Session) Parameters() Parameters { return s.params }
func (s *Session) RxProtocols() Protocols { return s.protocols }
func (s *Session) SamplesPerFrame() int   { return s.params.SamplesPerFrame }
func (s *Session) SampleSizeInp() int     { return s.params.SampleFormatInp.Size() }
func (s *Session) SampleSizeOut() int     { return s.params.SampleFormatOut.Size() }

// HzPerSample is the spacing of the tone grid.
func (s *Session) HzPerSample() float64 {
	return s.params.SampleRate / float64(s.params.SamplesPerFrame)
}

// Init sets up the transmission of payload. An empty payload clears the
// transmission: the encoded size becomes zero and nothing is pending.
func (s *Session) Init(payload []byte, id ProtocolID, repeat int) error {
	if s.closed {
		return ErrClosed
	}
	if !s.params.OperatingMode.CanTransmit() {
		return ErrNotTransmitter
	}

	protocol, err := DefaultProtocols().Get(id)
	if err != nil {
		return err
	}
	if float64(protocol.FreqStart+protocol.Bins())*s.HzPerSample() >= s.params.SampleRate/2 {
		return fmt.Errorf("%w: %s at %.0f Hz", ErrProtocolUnsupported, protocol.Name, s.params.SampleRate)
	}

	limit := MaxLengthVariable
	if s.params.PayloadLength > 0 {
		limit = s.params.PayloadLength
	}
	if len(payload) > limit {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(payload), limit)
	}
	if repeat < 1 {
		repeat = 1
	}

	s.tx.protocol = protocol
	s.tx.payload = append([]byte(nil), payload...)
	s.tx.repeat = repeat
	s.tx.pending = len(payload) > 0
	s.tx.waveform = nil
	s.tx.encoded = false

	logrus.WithFields(logrus.Fields{
		"function": "Session.Init",
		"protocol": protocol.Name,
		"length":   len(payload),
		"repeat":   repeat,
	}).Debug("Transmission initialized")

	return nil
}

func (s *Session) modulator() Modulator {
	return Modulator{
		Protocol:        s.tx.protocol,
		SamplesPerFrame: s.params.SamplesPerFrame,
		SampleRate:      s.params.SampleRate,
		Amplitude:       float64(s.params.Volume) / 100,
		PayloadLength:   s.params.PayloadLength,
	}
}

// EncodeSizeSamples is the number of output samples Encode produces,
// padded to whole frames.
func (s *Session) EncodeSizeSamples() uint32 {
	if s.closed {
		return 0
	}
	n := s.modulator().Size(s.tx.payload, s.tx.repeat)
	if n == 0 {
		return 0
	}
	if s.params.SampleRateOut != s.params.SampleRate {
		step := s.params.SampleRate / s.params.SampleRateOut
		n = int(math.Floor(float64(n-1)/step)) + 1
	}
	spf := s.params.SamplesPerFrame
	n = (n + spf - 1) / spf * spf
	return uint32(n)
}

func (s *Session) EncodeSizeBytes() uint32 {
	return s.EncodeSizeSamples() * uint32(s.SampleSizeOut())
}

// Encode synthesizes the pending waveform and returns its size in bytes.
// Calling it again without a new Init returns the same waveform.
func (s *Session) Encode() uint32 {
	if s.closed {
		return 0
	}
	if s.tx.encoded {
		return uint32(len(s.tx.waveform))
	}

	size := int(s.EncodeSizeSamples())
	if size == 0 {
		s.tx.waveform = nil
		s.tx.encoded = true
		return 0
	}

	samples := s.modulator().Modulate(s.tx.payload, s.tx.repeat)
	if s.params.SampleRateOut != s.params.SampleRate {
		samples = newResampler(s.params.SampleRate, s.params.SampleRateOut).Process(samples, nil)
	}
	if len(samples) > size {
		samples = samples[:size]
	}
	samples = append(samples, make([]float64, size-len(samples))...)

	s.tx.waveform = EncodeSamples(samples, s.params.SampleFormatOut)
	s.tx.encoded = true
	return uint32(len(s.tx.waveform))
}

// TxWaveform returns the waveform produced by the last Encode.
func (s *Session) TxWaveform() []byte {
	return s.tx.waveform
}

// TxTones returns the tone indices of the current transmission, relative to
// the protocol's FreqStart. -1 marks the end of a transmission.
func (s *Session) TxTones() []int {
	return s.modulator().Tones(s.tx.payload, s.tx.repeat)
}

func (s *Session) TxProtocol() Protocol { return s.tx.protocol }
func (s *Session) TxPending() bool      { return s.tx.pending && !s.closed }

// TxDone marks the pending transmission as handed over to playback.
func (s *Session) TxDone() {
	s.tx.pending = false
}

// Decode feeds captured samples in the input format. It returns false when
// the input cannot be processed. RxData reports the payload completed during
// this call, if any.
func (s *Session) Decode(data []byte) bool {
	s.rx.data = nil
	if s.closed || !s.params.OperatingMode.CanReceive() {
		return false
	}
	size := s.SampleSizeInp()
	if len(data)%size != 0 {
		return false
	}

	s.rx.samples = DecodeSamples(data, s.params.SampleFormatInp, s.rx.samples[:0])
	samples := s.rx.samples
	if !s.rx.resampler.identity() {
		samples = s.rx.resampler.Process(samples, nil)
	}

	payloads := s.rx.demodulator.Demodulate(samples)
	if len(payloads) > 0 {
		s.rx.data = payloads[len(payloads)-1]
		logrus.WithFields(logrus.Fields{
			"function": "Session.Decode",
			"length":   len(s.rx.data),
			"frames":   len(payloads),
		}).Debug("Payload decoded")
	}
	return true
}

func (s *Session) RxDataLength() int {
	return len(s.rx.data)
}

func (s *Session) RxData() []byte {
	return s.rx.data
}

// Close releases the session buffers. Every later call fails or reports nothing.
func (s *Session) Close() {
	s.closed = true
	s.tx.payload = nil
	s.tx.waveform = nil
	s.tx.pending = false
	s.rx.samples = nil
	s.rx.data = nil
	s.rx.demodulator = nil
}
