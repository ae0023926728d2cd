// Package gain rescales quiet 16-bit PCM recordings before they are written
// to disk.
package gain

import (
	"encoding/binary"
	"math"
)

const (
	// Threshold is the peak below which a waveform is amplified.
	Threshold = 20000
	// Target is the peak of an amplified waveform.
	Target = 25000
)

// Peak returns the largest absolute sample of buf, read as little-endian
// signed 16-bit samples. An odd trailing byte is ignored.
func Peak(buf []byte) int {
	peak := 0
	for i := 0; i+1 < len(buf); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(buf[i:])))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// Normalize returns a copy of buf scaled so that its peak becomes Target,
// together with the applied scale. Silence and waveforms already at or above
// Threshold are returned unchanged with scale 1. buf is never modified.
func Normalize(buf []byte) ([]byte, float64) {
	out := make([]byte, len(buf))
	copy(out, buf)

	peak := Peak(buf)
	if peak == 0 || peak >= Threshold {
		return out, 1
	}

	scale := float64(Target) / float64(peak)
	for i := 0; i+1 < len(out); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(out[i:]))) * scale
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(v)))
	}
	return out, scale
}
