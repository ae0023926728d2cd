package modem

import (
	"errors"
	"fmt"
)

type SampleFormat int

const (
	SampleFormatUndefined SampleFormat = iota
	SampleFormatI16
	SampleFormatF32
)

// Size returns the number of bytes of one sample.
func (f SampleFormat) Size() int {
	switch f {
	case SampleFormatI16:
		return 2
	case SampleFormatF32:
		return 4
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatI16:
		return "i16"
	case SampleFormatF32:
		return "f32"
	}
	return "undefined"
}

type OperatingMode int

const (
	ModeRX OperatingMode = 1 << 1
	ModeTX OperatingMode = 1 << 2

	ModeDuplex = ModeRX | ModeTX
)

func (m OperatingMode) CanReceive() bool  { return m&ModeRX != 0 }
func (m OperatingMode) CanTransmit() bool { return m&ModeTX != 0 }

const (
	MaxLengthVariable = 140
	MaxLengthFixed    = 64

	DefaultSampleRate      = 44100.0
	DefaultSamplesPerFrame = 1024
	DefaultMarkerThreshold = 3.0
	DefaultVolume          = 10
)

var ErrInvalidParameters = errors.New("invalid parameters")

// Parameters configures a Session. SampleRate is the rate the tone grid is
// defined on; input and output are resampled when their rates differ.
type Parameters struct {
	SampleRate      float64
	SampleRateInp   float64
	SampleRateOut   float64
	SamplesPerFrame int
	SampleFormatInp SampleFormat
	SampleFormatOut SampleFormat
	OperatingMode   OperatingMode

	PayloadLength        int     // -1 for variable length payloads
	SoundMarkerThreshold float64 // required marker-to-residual amplitude ratio
	Volume               int     // [0, 100]

	RxProtocols Protocols // nil means DefaultProtocols()
}

func DefaultParameters() Parameters {
	return Parameters{
		SampleRate:           DefaultSampleRate,
		SampleRateInp:        DefaultSampleRate,
		SampleRateOut:        DefaultSampleRate,
		SamplesPerFrame:      DefaultSamplesPerFrame,
		SampleFormatInp:      SampleFormatI16,
		SampleFormatOut:      SampleFormatI16,
		OperatingMode:        ModeDuplex,
		PayloadLength:        -1,
		SoundMarkerThreshold: DefaultMarkerThreshold,
		Volume:               DefaultVolume,
	}
}

func (p Parameters) Validate() error {
	if p.SampleRate <= 0 || p.SampleRateInp <= 0 || p.SampleRateOut <= 0 {
		return fmt.Errorf("%w: sample rates must be positive", ErrInvalidParameters)
	}
	if p.SamplesPerFrame <= 0 {
		return fmt.Errorf("%w: samples per frame must be positive", ErrInvalidParameters)
	}
	if p.SampleFormatInp.Size() == 0 || p.SampleFormatOut.Size() == 0 {
		return fmt.Errorf("%w: unsupported sample format", ErrInvalidParameters)
	}
	if p.OperatingMode&ModeDuplex == 0 {
		return fmt.Errorf("%w: operating mode must allow rx or tx", ErrInvalidParameters)
	}
	if p.PayloadLength != -1 && (p.PayloadLength < 1 || p.PayloadLength > MaxLengthFixed) {
		return fmt.Errorf("%w: payload length %d not in [1, %d]", ErrInvalidParameters, p.PayloadLength, MaxLengthFixed)
	}
	if p.SoundMarkerThreshold <= 0 {
		return fmt.Errorf("%w: marker threshold must be positive", ErrInvalidParameters)
	}
	if p.Volume < 0 || p.Volume > 100 {
		return fmt.Errorf("%w: volume %d not in [0, 100]", ErrInvalidParameters, p.Volume)
	}
	return nil
}
