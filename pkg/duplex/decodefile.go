package duplex

import (
	"fmt"
	"io"

	"Aethertalk/internel/utils"
	"Aethertalk/pkg/modem"
)

// DecodeFile decodes a raw waveform file with s in a single call. A read
// failure is returned; a waveform without payload is reported and returns
// ErrNotDecoded.
func DecodeFile(console io.Writer, s *modem.Session, path string) ([]byte, error) {
	fmt.Fprintf(console, "Loading waveform from file: %s\n", path)

	data, err := utils.ReadBinary[byte](path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(console, "Loaded %d bytes from file\n", len(data))

	if s.Decode(data) && s.RxDataLength() > 0 {
		payload := append([]byte(nil), s.RxData()...)
		fmt.Fprintf(console, "Decoded payload (%d bytes): %s\n", len(payload), payload)
		return payload, nil
	}

	fmt.Fprintln(console, "Failed to decode waveform or no payload detected")
	return nil, ErrNotDecoded
}
