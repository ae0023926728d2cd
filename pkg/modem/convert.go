package modem

import (
	"encoding/binary"
	"math"
)

// Samples are normalized to [-1, 1] inside the codec.

func DecodeSamples(data []byte, format SampleFormat, out []float64) []float64 {
	switch format {
	case SampleFormatI16:
		for i := 0; i+1 < len(data); i += 2 {
			out = append(out, float64(int16(binary.LittleEndian.Uint16(data[i:])))/32768)
		}
	case SampleFormatF32:
		for i := 0; i+3 < len(data); i += 4 {
			out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))))
		}
	}
	return out
}

func EncodeSamples(samples []float64, format SampleFormat) []byte {
	out := make([]byte, len(samples)*format.Size())
	switch format {
	case SampleFormatI16:
		for i, v := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(Float64ToInt16(v)))
		}
	case SampleFormatF32:
		for i, v := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		}
	}
	return out
}

func Float64ToInt16(v float64) int16 {
	return int16(math.Round(math.Max(math.Min(v, 1), -1) * math.MaxInt16))
}

// Int32ToBytes converts full scale device samples into the given sample format.
func Int32ToBytes(input []int32, format SampleFormat) []byte {
	out := make([]byte, len(input)*format.Size())
	switch format {
	case SampleFormatI16:
		for i, v := range input {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v>>16)))
		}
	case SampleFormatF32:
		for i, v := range input {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)/0x7fffffff))
		}
	}
	return out
}

// BytesToInt32 converts samples of the given format into full scale device samples.
func BytesToInt32(data []byte, format SampleFormat) []int32 {
	size := format.Size()
	if size == 0 {
		return nil
	}
	out := make([]int32, 0, len(data)/size)
	switch format {
	case SampleFormatI16:
		for i := 0; i+1 < len(data); i += 2 {
			out = append(out, int32(int16(binary.LittleEndian.Uint16(data[i:])))<<16)
		}
	case SampleFormatF32:
		for i := 0; i+3 < len(data); i += 4 {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
			out = append(out, int32(math.Max(math.Min(v, 1), -1)*0x7fffffff))
		}
	}
	return out
}
