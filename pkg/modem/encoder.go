package modem

// Modulator turns a payload into tone symbols and samples at the operating
// rate. A transmission is, per repeat: marker chirp, data symbols, one frame
// of silence.
type Modulator struct {
	Protocol        Protocol
	SamplesPerFrame int
	SampleRate      float64
	Amplitude       float64 // [0, 1]
	PayloadLength   int     // -1 for variable length
}

// frameBytes is [len][payload][crc8] for variable length payloads and
// [payload zero-padded][crc8] for fixed ones.
func (m Modulator) frameBytes(payload []byte) []byte {
	var frame []byte
	if m.PayloadLength < 0 {
		frame = make([]byte, 0, len(payload)+2)
		frame = append(frame, byte(len(payload)))
		frame = append(frame, payload...)
	} else {
		frame = make([]byte, m.PayloadLength, m.PayloadLength+1)
		copy(frame, payload)
	}
	return append(frame, CRC8(frame))
}

func (m Modulator) frameLength(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	if m.PayloadLength < 0 {
		return len(payload) + 2
	}
	return m.PayloadLength + 1
}

func symbolCount(frameLength, tonesPerTx int) int {
	nibbles := 2 * frameLength
	return (nibbles + tonesPerTx - 1) / tonesPerTx
}

func (m Modulator) symbolLength() int {
	return m.Protocol.FramesPerTx * m.SamplesPerFrame
}

// Symbols returns the tone indices, relative to FreqStart, of every symbol.
func (m Modulator) Symbols(payload []byte) [][]int {
	if len(payload) == 0 {
		return nil
	}
	frame := m.frameBytes(payload)
	t := m.Protocol.TonesPerTx

	nibbles := make([]int, 0, symbolCount(len(frame), t)*t)
	for _, b := range frame {
		nibbles = append(nibbles, int(b&0x0f), int(b>>4))
	}
	for len(nibbles)%t != 0 {
		nibbles = append(nibbles, 0)
	}

	symbols := make([][]int, 0, len(nibbles)/t)
	for i := 0; i < len(nibbles); i += t {
		tones := make([]int, t)
		for g := range t {
			tones[g] = binsPerTone*g + nibbles[i+g]
		}
		symbols = append(symbols, tones)
	}
	return symbols
}

// Tones flattens Symbols over all repeats, ending each repeat with -1.
func (m Modulator) Tones(payload []byte, repeat int) []int {
	symbols := m.Symbols(payload)
	if len(symbols) == 0 {
		return nil
	}
	var tones []int
	for range repeat {
		for _, s := range symbols {
			tones = append(tones, s...)
		}
		tones = append(tones, -1)
	}
	return tones
}

// Size is the number of samples Modulate produces.
func (m Modulator) Size(payload []byte, repeat int) int {
	n := m.frameLength(payload)
	if n == 0 || repeat <= 0 {
		return 0
	}
	once := markerLength(m.Protocol, m.SamplesPerFrame) +
		symbolCount(n, m.Protocol.TonesPerTx)*m.symbolLength() +
		m.SamplesPerFrame
	return once * repeat
}

func (m Modulator) Modulate(payload []byte, repeat int) []float64 {
	size := m.Size(payload, repeat)
	if size == 0 {
		return nil
	}

	marker := markerFor(m.Protocol, m.SamplesPerFrame, m.SampleRate, m.Amplitude)
	symbols := m.Symbols(payload)

	modulatedData := make([]float64, 0, size)
	for range repeat {
		modulatedData = append(modulatedData, marker...)

		for _, tones := range symbols {
			bins := make([]int, len(tones))
			for i, tone := range tones {
				bins[i] = m.Protocol.FreqStart + tone
			}
			modulatedData = CarrierConfig{
				Amplitude:       m.Amplitude,
				Bins:            bins,
				SamplesPerFrame: m.SamplesPerFrame,
				Size:            m.symbolLength(),
			}.AppendTo(modulatedData)
		}

		// add the interval
		modulatedData = append(modulatedData, make([]float64, m.SamplesPerFrame)...)
	}

	return modulatedData
}
