package modem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceiver(t *testing.T, id ProtocolID) *Session {
	t.Helper()
	params := DefaultParameters()
	params.OperatingMode = ModeRX
	params.SoundMarkerThreshold = 1
	params.RxProtocols = DefaultProtocols().Only(id)
	s, err := New(params)
	require.NoError(t, err)
	return s
}

func encode(t *testing.T, s *Session, payload []byte, id ProtocolID, repeat int) []byte {
	t.Helper()
	require.NoError(t, s.Init(payload, id, repeat))
	size := s.EncodeSizeBytes()
	require.NotZero(t, size)
	require.Equal(t, size, s.Encode())
	return append([]byte(nil), s.TxWaveform()[:size]...)
}

// feed decodes data frame by frame and returns the first payload found.
func feed(s *Session, data []byte) []byte {
	frameSize := s.SamplesPerFrame() * s.SampleSizeInp()
	for i := 0; i+frameSize <= len(data); i += frameSize {
		if s.Decode(data[i:i+frameSize]) && s.RxDataLength() > 0 {
			return s.RxData()
		}
	}
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	payload := []byte("hello")

	for _, p := range DefaultProtocols().Enabled() {
		t.Run(p.Name, func(t *testing.T) {
			tx, err := New(DefaultParameters())
			require.NoError(t, err)

			waveform := encode(t, tx, payload, p.ID, 1)
			assert.Zero(t, len(waveform)%(tx.SamplesPerFrame()*tx.SampleSizeOut()))

			assert.Equal(t, payload, feed(newReceiver(t, p.ID), waveform))
		})
	}
}

func TestSessionDecodeWholeBuffer(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	waveform := encode(t, tx, []byte("whole"), 1, 1)

	rx, err := New(DefaultParameters())
	require.NoError(t, err)
	require.True(t, rx.Decode(waveform))
	assert.Equal(t, []byte("whole"), rx.RxData())
}

func TestSessionMisalignedStart(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	waveform := encode(t, tx, []byte("offset"), 0, 1)

	shifted := append(make([]byte, 2*137), waveform...)
	assert.Equal(t, []byte("offset"), feed(newReceiver(t, 0), shifted))
}

func TestSessionFixedPayloadLength(t *testing.T) {
	params := DefaultParameters()
	params.PayloadLength = 4
	tx, err := New(params)
	require.NoError(t, err)
	waveform := encode(t, tx, []byte("hi"), 2, 1)

	params.OperatingMode = ModeRX
	params.RxProtocols = DefaultProtocols().Only(2)
	rx, err := New(params)
	require.NoError(t, err)

	assert.Equal(t, []byte{'h', 'i', 0, 0}, feed(rx, waveform))
}

func TestSessionRepeat(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	once := encode(t, tx, []byte("ab"), 2, 1)
	thrice := encode(t, tx, []byte("ab"), 2, 3)
	assert.Greater(t, len(thrice), 2*len(once))

	ends := 0
	for _, tone := range tx.TxTones() {
		if tone < 0 {
			ends++
		}
	}
	assert.Equal(t, 3, ends)

	rx := newReceiver(t, 2)
	frameSize := rx.SamplesPerFrame() * rx.SampleSizeInp()
	found := 0
	for i := 0; i+frameSize <= len(thrice); i += frameSize {
		rx.Decode(thrice[i : i+frameSize])
		if rx.RxDataLength() > 0 {
			assert.Equal(t, []byte("ab"), rx.RxData())
			found++
		}
	}
	assert.Equal(t, 3, found)
}

func TestSessionEncodeIsDeterministic(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	first := encode(t, tx, []byte("again"), 0, 1)
	second := encode(t, tx, []byte("again"), 0, 1)
	assert.True(t, bytes.Equal(first, second))
}

func TestSessionEmptyPayload(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	require.NoError(t, tx.Init(nil, 0, 1))

	assert.False(t, tx.TxPending())
	assert.Zero(t, tx.EncodeSizeBytes())
	assert.Zero(t, tx.Encode())
	assert.Empty(t, tx.TxWaveform())
	assert.Empty(t, tx.TxTones())
}

func TestSessionInitErrors(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Init([]byte("x"), 99, 1), ErrUnknownProtocol)
	assert.ErrorIs(t, tx.Init([]byte("x"), -1, 1), ErrUnknownProtocol)
	assert.ErrorIs(t, tx.Init([]byte("x"), 9, 1), ErrProtocolDisabled)
	assert.ErrorIs(t, tx.Init(make([]byte, MaxLengthVariable+1), 0, 1), ErrPayloadTooLong)

	rx := newReceiver(t, 0)
	assert.ErrorIs(t, rx.Init([]byte("x"), 0, 1), ErrNotTransmitter)

	params := DefaultParameters()
	params.SamplesPerFrame = 512
	low, err := New(params)
	require.NoError(t, err)
	assert.ErrorIs(t, low.Init([]byte("x"), 3, 1), ErrProtocolUnsupported)
}

func TestSessionRxRestriction(t *testing.T) {
	tx, err := New(DefaultParameters())
	require.NoError(t, err)
	waveform := encode(t, tx, []byte("hidden"), 0, 1)

	params := DefaultParameters()
	params.RxProtocols = DefaultProtocols().Only(3)
	rx, err := New(params)
	require.NoError(t, err)
	assert.Nil(t, feed(rx, waveform))
}

func TestSessionDecodeRejectsMalformedInput(t *testing.T) {
	rx := newReceiver(t, 0)
	assert.False(t, rx.Decode([]byte{1, 2, 3}))
	assert.True(t, rx.Decode(make([]byte, 2048)))
	assert.Zero(t, rx.RxDataLength())

	rx.Close()
	assert.False(t, rx.Decode(make([]byte, 2048)))
}

func TestSessionResampledOutputSize(t *testing.T) {
	params := DefaultParameters()
	params.SampleRateOut = 48000
	tx, err := New(params)
	require.NoError(t, err)

	require.NoError(t, tx.Init([]byte("rate"), 0, 1))
	size := tx.EncodeSizeBytes()
	assert.Equal(t, size, tx.Encode())
	assert.Len(t, tx.TxWaveform(), int(size))
	assert.Zero(t, int(size)%(params.SamplesPerFrame*2))
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Parameters)
	}{
		{"zero sample rate", func(p *Parameters) { p.SampleRate = 0 }},
		{"zero frame", func(p *Parameters) { p.SamplesPerFrame = 0 }},
		{"bad format", func(p *Parameters) { p.SampleFormatInp = SampleFormatUndefined }},
		{"no mode", func(p *Parameters) { p.OperatingMode = 0 }},
		{"payload too long", func(p *Parameters) { p.PayloadLength = MaxLengthFixed + 1 }},
		{"zero payload", func(p *Parameters) { p.PayloadLength = 0 }},
		{"zero threshold", func(p *Parameters) { p.SoundMarkerThreshold = 0 }},
		{"loud", func(p *Parameters) { p.Volume = 101 }},
	}

	assert.NoError(t, DefaultParameters().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)
		})
	}
}
