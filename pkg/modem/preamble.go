package modem

import "math"

func chirp(out *[]float64, startFreq, endFreq float64, length int, sampleRate, amplitude float64) {
	c := (endFreq - startFreq) / (float64(length) / sampleRate)
	f0 := startFreq

	for i := 0; i < length; i++ {
		t := float64(i) / sampleRate
		o := amplitude * math.Sin(2*math.Pi*(c/2*t+f0)*t)
		*out = append(*out, o)
	}
}

// ChirpConfig describes an up-down chirp used as the start-of-transmission marker.
type ChirpConfig struct {
	MinFreq    float64
	MaxFreq    float64
	Length     int
	SampleRate float64
	Amplitude  float64
}

func (p ChirpConfig) New() []float64 {
	preamble := make([]float64, 0, p.Length)

	chirp(&preamble, p.MinFreq, p.MaxFreq, p.Length/2, p.SampleRate, p.Amplitude)
	chirp(&preamble, p.MaxFreq, p.MinFreq, p.Length-p.Length/2, p.SampleRate, p.Amplitude)

	return preamble
}

// markerLength is the marker size in samples. Protocols sharing a band get
// markers of different durations, so different sweep rates.
func markerLength(p Protocol, samplesPerFrame int) int {
	return p.FramesPerTx * samplesPerFrame / 8
}

func markerFor(p Protocol, samplesPerFrame int, sampleRate, amplitude float64) []float64 {
	hz := sampleRate / float64(samplesPerFrame)
	return ChirpConfig{
		MinFreq:    float64(p.FreqStart) * hz,
		MaxFreq:    float64(p.FreqStart+p.Bins()) * hz,
		Length:     markerLength(p, samplesPerFrame),
		SampleRate: sampleRate,
		Amplitude:  amplitude,
	}.New()
}
