package modem

func interpolate(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// resampler is a streaming linear interpolator from one rate to another.
type resampler struct {
	step   float64 // input samples per output sample
	pos    float64 // position of the next output sample, 0 being last
	last   float64
	primed bool
}

func newResampler(from, to float64) *resampler {
	return &resampler{step: from / to}
}

func (r *resampler) identity() bool {
	return r.step == 1
}

func (r *resampler) Process(in, out []float64) []float64 {
	if r.identity() {
		return append(out, in...)
	}
	if !r.primed {
		if len(in) == 0 {
			return out
		}
		r.last = in[0]
		in = in[1:]
		r.primed = true
		out = append(out, r.last)
		r.pos = r.step
	}

	// x(0) is the last sample of the previous call, x(j) is in[j-1]
	x := func(j int) float64 {
		if j == 0 {
			return r.last
		}
		return in[j-1]
	}

	n := float64(len(in))
	for r.pos <= n {
		i := int(r.pos)
		frac := r.pos - float64(i)
		a := x(i)
		b := a
		if i+1 <= len(in) {
			b = x(i + 1)
		}
		out = append(out, interpolate(a, b, frac))
		r.pos += r.step
	}
	r.pos -= n
	if len(in) > 0 {
		r.last = in[len(in)-1]
	}
	return out
}
