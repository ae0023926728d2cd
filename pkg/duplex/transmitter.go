package duplex

import (
	"context"
	"errors"
	"fmt"
	"io"

	"Aethertalk/pkg/async"
	"Aethertalk/pkg/modem"
	"Aethertalk/pkg/observe"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transmitter turns console lines into transmissions on the live session.
// An empty line resends the previous line, even one that failed to send.
type Transmitter struct {
	Live     *Live
	Protocol modem.ProtocolID
	Repeat   int
	Verbose  bool     // print the tones of a resent transmission
	Harness  *Harness // nil disables the round-trip check
	Console  io.Writer
	Metrics  *observe.Metrics

	last []byte
}

// Run prompts for lines from input until ctx is done or input ends.
func (t *Transmitter) Run(ctx context.Context, input io.Reader) error {
	lines := async.Lines(ctx, input)
	for {
		fmt.Fprint(t.Console, "Enter text: ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				logrus.WithField("function", "Transmitter.Run").Info("Input closed, transmission disabled")
				return nil
			}
			t.Handle(ctx, line)
		}
	}
}

// Handle performs one transmission. Failures are reported on the console.
func (t *Transmitter) Handle(ctx context.Context, line string) {
	id := uuid.New()
	log := logrus.WithFields(logrus.Fields{
		"function":     "Transmitter.Handle",
		"transmission": id,
	})

	resend := line == ""
	payload := []byte(line)
	if resend {
		if len(t.last) == 0 {
			fmt.Fprintln(t.Console, "Nothing to resend")
			return
		}
		payload = t.last
		fmt.Fprintln(t.Console, "Re-sending ...")
	} else {
		fmt.Fprintln(t.Console, "Sending ...")
		log.WithFields(logrus.Fields{
			"hex":     fmt.Sprintf("% x", payload),
			"decimal": fmt.Sprint(payload),
		}).Debug("Payload bytes")
	}
	t.last = payload

	var (
		capture    Capture
		captureErr error
		initErr    error
		tones      []int
		protocol   modem.Protocol
		hz         float64
	)
	t.Live.Do(func(s *modem.Session) {
		if initErr = s.Init(payload, t.Protocol, t.Repeat); initErr != nil {
			return
		}
		if resend && t.Verbose {
			tones, protocol, hz = s.TxTones(), s.TxProtocol(), s.HzPerSample()
		}
		if t.Harness != nil {
			capture, captureErr = t.Harness.Capture(id, s)
		}
	})
	if initErr != nil {
		fmt.Fprintf(t.Console, "Failed to initialize transmission: %v\n", initErr)
		log.WithError(initErr).Error("Init failed")
		return
	}

	t.Metrics.RecordTransmission(ctx, t.protocolName(), resend)

	if resend && t.Verbose {
		t.printTones(tones, protocol, hz)
	}

	if t.Harness == nil {
		return
	}
	if captureErr != nil {
		switch {
		case errors.Is(captureErr, ErrNothingToSend):
			fmt.Fprintln(t.Console, "Nothing to send: the encoded waveform is empty")
		default:
			fmt.Fprintf(t.Console, "Error: %v\n", captureErr)
		}
		return
	}
	t.Harness.Verify(ctx, capture)
}

func (t *Transmitter) printTones(tones []int, protocol modem.Protocol, hz float64) {
	fmt.Fprintln(t.Console, "Generated waveform tones (Hz):")
	for i, tone := range tones {
		if tone < 0 {
			fmt.Fprintln(t.Console, " - end tx")
			continue
		}
		fmt.Fprintf(t.Console, " - tone %3d: %f\n", i, float64(protocol.FreqStart+tone)*hz)
	}
}

func (t *Transmitter) protocolName() string {
	p, err := modem.DefaultProtocols().Get(t.Protocol)
	if err != nil {
		return fmt.Sprint(t.Protocol)
	}
	return p.Name
}
