package modem

import "math"

// CarrierConfig describes a sum of sinusoids on bins of a frame-sized DFT
// grid. Every bin completes a whole number of cycles per frame, so tones of
// different bins are orthogonal over any whole number of frames.
type CarrierConfig struct {
	Amplitude       float64
	Bins            []int
	SamplesPerFrame int
	Size            int
}

func (p CarrierConfig) New() []float64 {
	return p.AppendTo(make([]float64, 0, p.Size))
}

func (p CarrierConfig) AppendTo(out []float64) []float64 {
	if len(p.Bins) == 0 {
		return append(out, make([]float64, p.Size)...)
	}
	a := p.Amplitude / float64(len(p.Bins))
	n := float64(p.SamplesPerFrame)
	for i := 0; i < p.Size; i++ {
		var s float64
		for _, k := range p.Bins {
			s += math.Sin(2 * math.Pi * float64(k) * float64(i) / n)
		}
		out = append(out, a*s)
	}
	return out
}

// goertzel returns the power of bin k (on a grid of samplesPerFrame) in x.
func goertzel(x []float64, k, samplesPerFrame int) float64 {
	w := 2 * math.Pi * float64(k) / float64(samplesPerFrame)
	coeff := 2 * math.Cos(w)
	var s1, s2 float64
	for _, v := range x {
		s := v + coeff*s1 - s2
		s2 = s1
		s1 = s
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}
