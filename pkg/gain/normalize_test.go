package gain

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func pcm(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		expected int
	}{
		{"empty", nil, 0},
		{"silence", pcm(0, 0, 0), 0},
		{"positive", pcm(1, 300, -20), 300},
		{"negative", pcm(1, -300, 20), 300},
		{"min int16", pcm(-32768, 5), 32768},
		{"odd trailing byte", append(pcm(7), 0xff), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Peak(tt.buf))
		})
	}
}

func TestNormalizeQuiet(t *testing.T) {
	in := pcm(1000, -2000, 500, 0)
	original := append([]byte(nil), in...)

	out, scale := Normalize(in)
	assert.Equal(t, original, in, "input must not be modified")
	assert.Len(t, out, len(in))
	assert.InDelta(t, 12.5, scale, 1e-9)
	assert.Equal(t, pcm(12500, -25000, 6250, 0), out)
}

func TestNormalizeUnchanged(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"silence", pcm(0, 0)},
		{"at threshold", pcm(Threshold, -10)},
		{"loud", pcm(-30000, 30000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, scale := Normalize(tt.buf)
			assert.Equal(t, 1.0, scale)
			assert.Len(t, out, len(tt.buf))
			assert.Equal(t, Peak(tt.buf), Peak(out))
		})
	}
}

func TestNormalizeOddLength(t *testing.T) {
	in := append(pcm(100, -50), 0x42)
	out, _ := Normalize(in)
	assert.Len(t, out, len(in))
	assert.Equal(t, byte(0x42), out[len(out)-1])
	assert.Equal(t, Target, Peak(out))
}

func TestNormalizeRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for range 100 {
		samples := make([]int16, 1+r.Intn(512))
		limit := 1 + r.Intn(Threshold-1)
		for i := range samples {
			samples[i] = int16(r.Intn(2*limit+1) - limit)
		}
		in := pcm(samples...)

		out, _ := Normalize(in)
		if peak := Peak(in); peak > 0 {
			assert.InDelta(t, Target, Peak(out), 1)
		} else {
			assert.Equal(t, in, out)
		}
	}
}
