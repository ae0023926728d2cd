// Package duplex runs the acoustic channel: a transmit loop reading console
// lines and an I/O loop pumping the audio device, both sharing one codec
// session, plus an offline round-trip check of encoded waveforms.
package duplex

import (
	"context"
	"errors"
	"io"

	"Aethertalk/pkg/async"
	layer "Aethertalk/pkg/layers"

	"github.com/sirupsen/logrus"
)

// Duplex wires the loops together and owns their shutdown order.
type Duplex struct {
	Live        *Live
	Layer       *layer.PhysicalLayer
	Scheduler   *Scheduler
	Transmitter *Transmitter // nil in receive-only mode
	Input       io.Reader
}

// Run opens the device and runs the I/O loop on the calling goroutine and
// the transmit loop on its own until ctx is done. It then joins the transmit
// loop, closes the session and finally closes the device.
func (d *Duplex) Run(ctx context.Context) error {
	d.Layer.Open()

	var transmit <-chan error
	if d.Transmitter != nil {
		transmit = async.Job(func() error {
			return d.Transmitter.Run(ctx, d.Input)
		})
	}

	err := d.Scheduler.Run(ctx)

	if transmit != nil {
		err = errors.Join(err, async.FirstError(transmit))
	}
	logrus.WithField("function", "Duplex.Run").Debug("Loops stopped")

	d.Live.Close()
	d.Layer.Close()
	return err
}
