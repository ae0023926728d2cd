package modem

import (
	"errors"
	"fmt"
)

type ProtocolID int

// Protocol describes one tone layout. A symbol lasts FramesPerTx frames and
// carries TonesPerTx nibbles, nibble g being sent on bin FreqStart+16*g+value.
type Protocol struct {
	ID          ProtocolID
	Name        string
	Enabled     bool
	FreqStart   int
	FramesPerTx int
	TonesPerTx  int
}

const binsPerTone = 16

// Bins returns the number of frequency bins the protocol occupies.
func (p Protocol) Bins() int {
	return binsPerTone * p.TonesPerTx
}

// BytesPerTx is the payload capacity of one symbol.
func (p Protocol) BytesPerTx() float64 {
	return float64(p.TonesPerTx) / 2
}

type Protocols []Protocol

var (
	ErrUnknownProtocol  = errors.New("unknown protocol")
	ErrProtocolDisabled = errors.New("protocol disabled")
)

// DefaultProtocols returns a fresh copy of the built-in protocol table.
func DefaultProtocols() Protocols {
	return Protocols{
		{0, "Normal", true, 40, 9, 6},
		{1, "Fast", true, 40, 6, 6},
		{2, "Fastest", true, 40, 3, 6},
		{3, "[U] Normal", true, 320, 9, 6},
		{4, "[U] Fast", true, 320, 6, 6},
		{5, "[U] Fastest", true, 320, 3, 6},
		{6, "[DT] Normal", true, 24, 9, 2},
		{7, "[DT] Fast", true, 24, 6, 2},
		{8, "[DT] Fastest", true, 24, 3, 2},
		{9, "[MT] Normal", false, 24, 9, 1},
		{10, "[MT] Fast", false, 24, 6, 1},
		{11, "[MT] Fastest", false, 24, 3, 1},
	}
}

// Get returns the enabled protocol with the given id.
func (ps Protocols) Get(id ProtocolID) (Protocol, error) {
	if id < 0 || int(id) >= len(ps) {
		return Protocol{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, id)
	}
	p := ps[id]
	if !p.Enabled {
		return Protocol{}, fmt.Errorf("%w: %d (%s)", ErrProtocolDisabled, id, p.Name)
	}
	return p, nil
}

// Only returns a copy of the table in which only id is enabled.
func (ps Protocols) Only(id ProtocolID) Protocols {
	out := make(Protocols, len(ps))
	copy(out, ps)
	for i := range out {
		out[i].Enabled = out[i].ID == id
	}
	return out
}

func (ps Protocols) Enabled() Protocols {
	var out Protocols
	for _, p := range ps {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}
