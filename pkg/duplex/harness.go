package duplex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"Aethertalk/internel/utils"
	"Aethertalk/pkg/gain"
	"Aethertalk/pkg/modem"
	"Aethertalk/pkg/observe"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSavePath    = errors.New("save path is empty")
	ErrNothingToSend = errors.New("nothing to send")
	ErrNotDecoded    = errors.New("no payload decoded")
	ErrSampleFormat  = errors.New("waveform is not 16-bit PCM")
)

// Verification session settings. The saved file is always replayed as
// 44.1 kHz I16 mono, whatever the live session runs at.
const (
	VerifySampleRate      = 44100.0
	VerifySamplesPerFrame = 1024
	VerifyMarkerThreshold = 1.0
)

// Capture is a copy of an encoded waveform taken under the live lock.
type Capture struct {
	ID            uuid.UUID
	Protocol      modem.Protocol
	PayloadLength int
	Waveform      []byte
}

// Harness saves encoded waveforms, reads them back and replays them into a
// dedicated receive-only session to check the round trip offline.
type Harness struct {
	Path    string
	Console io.Writer
	Metrics *observe.Metrics

	mu               sync.Mutex // guards the verifier and the file at Path
	verifier         *modem.Session
	verifierProtocol modem.ProtocolID
	verifierLength   int
}

// Capture encodes the pending transmission of s and copies the waveform.
// The caller holds the live lock.
func (h *Harness) Capture(id uuid.UUID, s *modem.Session) (Capture, error) {
	if h.Path == "" {
		return Capture{}, ErrNoSavePath
	}

	params := s.Parameters()
	if params.SampleFormatOut != modem.SampleFormatI16 {
		return Capture{}, fmt.Errorf("%w: %s", ErrSampleFormat, params.SampleFormatOut)
	}
	if params.SampleRateOut != VerifySampleRate {
		logrus.WithFields(logrus.Fields{
			"function":        "Harness.Capture",
			"sample_rate_out": params.SampleRateOut,
		}).Warn("Saved waveform will be replayed at a different sample rate")
	}

	size := s.EncodeSizeBytes()
	if size == 0 {
		return Capture{}, ErrNothingToSend
	}
	encoded := s.Encode()
	waveform := s.TxWaveform()
	if encoded == 0 || uint32(len(waveform)) < size {
		return Capture{}, fmt.Errorf("%w: encoder produced %d of %d bytes", ErrNothingToSend, len(waveform), size)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Harness.Capture",
		"transmission": id,
		"size":         size,
		"encoded":      encoded,
	}).Debug("Waveform captured")

	return Capture{
		ID:            id,
		Protocol:      s.TxProtocol(),
		PayloadLength: params.PayloadLength,
		Waveform:      append([]byte(nil), waveform[:size]...),
	}, nil
}

// Verify normalizes the captured waveform, writes it to Path, reads it back
// and replays it frame by frame. Every failure is reported on the console
// and returned; none is fatal.
func (h *Harness) Verify(ctx context.Context, c Capture) (payload []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "duplex.verify")
	defer span.End()
	start := time.Now()
	log := observe.Logger(ctx).WithFields(logrus.Fields{
		"function":     "Harness.Verify",
		"transmission": c.ID,
		"path":         h.Path,
	})

	defer func() {
		result := "decoded"
		if err != nil {
			result = "failed"
			span.RecordError(err)
			log.WithError(err).Warn("Round trip failed")
		}
		h.Metrics.RecordVerification(ctx, result, time.Since(start))
	}()

	if h.Path == "" {
		h.report("Error: save path is empty")
		return nil, ErrNoSavePath
	}

	normalized, scale := gain.Normalize(c.Waveform)
	log.WithFields(logrus.Fields{
		"peak":  gain.Peak(c.Waveform),
		"scale": scale,
	}).Debug("Waveform normalized")

	if err := utils.WriteBinary(h.Path, normalized); err != nil {
		h.report("Error: failed to save waveform to %s: %v", h.Path, err)
		return nil, err
	}
	h.report("Saved normalized waveform to %s (%d bytes)", h.Path, len(normalized))

	loaded, err := utils.ReadBytes(h.Path, len(normalized))
	if err != nil {
		h.report("Error: failed to read back %s: %v", h.Path, err)
		return nil, err
	}

	verifier, err := h.verifierFor(c)
	if err != nil {
		h.report("Error: failed to create the verification session: %v", err)
		return nil, err
	}

	payload, frame, ok := Replay(verifier, loaded)
	if !ok {
		h.report("Failed to decode the saved waveform (%d frames)", frame)
		return nil, ErrNotDecoded
	}

	h.report("Decoded payload (%d bytes) at frame %d: %s", len(payload), frame, payload)
	h.report("Decoded bytes (hex): % x", payload)
	return payload, nil
}

// verifierFor returns the verification session, building it on first use
// and whenever the protocol or payload length under test changes.
func (h *Harness) verifierFor(c Capture) (*modem.Session, error) {
	if h.verifier != nil && h.verifierProtocol == c.Protocol.ID && h.verifierLength == c.PayloadLength {
		// drop whatever the previous replay left in the receiver
		if err := h.verifier.Prepare(h.verifier.Parameters(), true); err != nil {
			return nil, err
		}
		return h.verifier, nil
	}

	params := modem.DefaultParameters()
	params.OperatingMode = modem.ModeRX
	params.RxProtocols = modem.DefaultProtocols().Only(c.Protocol.ID)
	params.PayloadLength = c.PayloadLength
	params.SampleRate = VerifySampleRate
	params.SampleRateInp = VerifySampleRate
	params.SampleRateOut = VerifySampleRate
	params.SamplesPerFrame = VerifySamplesPerFrame
	params.SampleFormatInp = modem.SampleFormatI16
	params.SampleFormatOut = modem.SampleFormatI16
	params.SoundMarkerThreshold = VerifyMarkerThreshold

	verifier, err := modem.New(params)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Harness.verifierFor",
		"protocol": c.Protocol.Name,
		"rebuilt":  h.verifier != nil,
	}).Info("Verification session ready")

	h.verifier = verifier
	h.verifierProtocol = c.Protocol.ID
	h.verifierLength = c.PayloadLength
	return verifier, nil
}

func (h *Harness) report(format string, args ...any) {
	if h.Console != nil {
		fmt.Fprintf(h.Console, format+"\n", args...)
	}
}

// Replay feeds data to s one frame at a time and stops at the first frame
// that completes a payload. A trailing partial frame is dropped. frame is
// the index of that frame, or the number of frames fed when nothing decoded.
func Replay(s *modem.Session, data []byte) (payload []byte, frame int, ok bool) {
	frameSize := s.SamplesPerFrame() * s.SampleSizeInp()
	totalFrames := len(data) / frameSize

	for i := range totalFrames {
		if !s.Decode(data[i*frameSize : (i+1)*frameSize]) {
			continue
		}
		if s.RxDataLength() > 0 {
			return append([]byte(nil), s.RxData()...), i, true
		}
	}
	return nil, totalFrames, false
}
