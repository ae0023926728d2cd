package duplex

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"Aethertalk/pkg/device"
	layer "Aethertalk/pkg/layers"
	"Aethertalk/pkg/modem"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLive(t *testing.T, rx modem.ProtocolID) *Live {
	t.Helper()
	params := modem.DefaultParameters()
	params.RxProtocols = modem.DefaultProtocols().Only(rx)
	s, err := modem.New(params)
	require.NoError(t, err)
	return NewLive(s)
}

func newTransmitter(t *testing.T, protocol modem.ProtocolID, path string) (*Transmitter, *bytes.Buffer) {
	t.Helper()
	var console bytes.Buffer
	tx := &Transmitter{
		Live:     newLive(t, protocol),
		Protocol: protocol,
		Repeat:   1,
		Console:  &console,
	}
	if path != "" {
		tx.Harness = &Harness{Path: path, Console: &console}
	}
	return tx, &console
}

func TestRoundTripScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, console := newTransmitter(t, 0, path)

	tx.Handle(context.Background(), "hi")

	assert.Contains(t, console.String(), "Sending ...")
	assert.Contains(t, console.String(), "Decoded payload (2 bytes)")
	assert.Contains(t, console.String(), ": hi\n")

	var size uint32
	tx.Live.Do(func(s *modem.Session) { size = s.EncodeSizeBytes() })
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(size), info.Size())
}

func TestRoundTripEveryProtocol(t *testing.T) {
	for _, p := range modem.DefaultProtocols().Enabled() {
		t.Run(p.Name, func(t *testing.T) {
			live := newLive(t, p.ID)
			h := &Harness{Path: filepath.Join(t.TempDir(), "out.raw")}

			var c Capture
			var err error
			live.Do(func(s *modem.Session) {
				require.NoError(t, s.Init([]byte("round trip"), p.ID, 1))
				c, err = h.Capture(uuid.New(), s)
			})
			require.NoError(t, err)

			payload, err := h.Verify(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, []byte("round trip"), payload)
		})
	}
}

func TestNothingToResend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, console := newTransmitter(t, 0, path)

	tx.Handle(context.Background(), "")

	assert.Contains(t, console.String(), "Nothing to resend")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	tx.Live.Do(func(s *modem.Session) { assert.False(t, s.TxPending()) })
}

func TestResendIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, console := newTransmitter(t, 1, path)
	tx.Verbose = true
	ctx := context.Background()

	tx.Handle(ctx, "abc")
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	tx.Handle(ctx, "")
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	out := console.String()
	assert.Contains(t, out, "Re-sending ...")
	assert.Contains(t, out, " - end tx")
	assert.Equal(t, 2, strings.Count(out, "Decoded payload (3 bytes)"))
}

func TestInvalidProtocolIsReported(t *testing.T) {
	tx, console := newTransmitter(t, 0, filepath.Join(t.TempDir(), "out.raw"))
	tx.Protocol = 42

	tx.Handle(context.Background(), "hi")
	assert.Contains(t, console.String(), "Failed to initialize transmission")
	assert.NotContains(t, console.String(), "Saved")
}

func TestResendAfterRejectedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, console := newTransmitter(t, 0, path)
	ctx := context.Background()

	tx.Handle(ctx, "ok")
	tx.Handle(ctx, strings.Repeat("x", modem.MaxLengthVariable+1))
	console.Reset()

	tx.Handle(ctx, "")
	out := console.String()
	assert.Contains(t, out, "Re-sending ...")
	assert.Contains(t, out, "Failed to initialize transmission")
	assert.NotContains(t, out, "Decoded payload")
}

func TestCaptureWithoutPath(t *testing.T) {
	live := newLive(t, 0)
	h := &Harness{}
	live.Do(func(s *modem.Session) {
		require.NoError(t, s.Init([]byte("x"), 0, 1))
		_, err := h.Capture(uuid.New(), s)
		assert.ErrorIs(t, err, ErrNoSavePath)

		require.NoError(t, s.Init(nil, 0, 1))
		h.Path = "unused"
		_, err = h.Capture(uuid.New(), s)
		assert.ErrorIs(t, err, ErrNothingToSend)
	})
}

func TestVerifyRebuildsOnProtocolChange(t *testing.T) {
	live := newLive(t, 0)
	h := &Harness{Path: filepath.Join(t.TempDir(), "out.raw")}
	ctx := context.Background()

	for _, id := range []modem.ProtocolID{0, 2, 0} {
		var c Capture
		live.Do(func(s *modem.Session) {
			require.NoError(t, s.Init([]byte("switch"), id, 1))
			var err error
			c, err = h.Capture(uuid.New(), s)
			require.NoError(t, err)
		})
		payload, err := h.Verify(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, []byte("switch"), payload)
		assert.Equal(t, id, h.verifierProtocol)
	}
}

func TestVerifyReusesVerifier(t *testing.T) {
	live := newLive(t, 0)
	h := &Harness{Path: filepath.Join(t.TempDir(), "out.raw")}
	ctx := context.Background()

	var first *modem.Session
	for _, text := range []string{"first", "second"} {
		var c Capture
		live.Do(func(s *modem.Session) {
			require.NoError(t, s.Init([]byte(text), 2, 1))
			var err error
			c, err = h.Capture(uuid.New(), s)
			require.NoError(t, err)
		})
		payload, err := h.Verify(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, []byte(text), payload)

		if first == nil {
			first = h.verifier
		}
		assert.Same(t, first, h.verifier)
	}
}

func TestReplayDropsPartialFrame(t *testing.T) {
	live := newLive(t, 0)
	var waveform []byte
	live.Do(func(s *modem.Session) {
		require.NoError(t, s.Init([]byte("hi"), 0, 1))
		s.Encode()
		waveform = append([]byte(nil), s.TxWaveform()...)
	})
	data := append(waveform, make([]byte, 1000)...)

	h := &Harness{}
	verifier, err := h.verifierFor(Capture{Protocol: modem.Protocol{ID: 0}, PayloadLength: -1})
	require.NoError(t, err)

	payload, frame, ok := Replay(verifier, data)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), payload)
	assert.Less(t, frame, len(waveform)/2048)

	_, frame, ok = Replay(verifier, make([]byte, 2047))
	assert.False(t, ok)
	assert.Zero(t, frame)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, _ := newTransmitter(t, 2, path)
	tx.Handle(context.Background(), "from disk")

	var console bytes.Buffer
	rx := newLive(t, 2)
	rx.Do(func(s *modem.Session) {
		payload, err := DecodeFile(&console, s, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("from disk"), payload)

		_, err = DecodeFile(&console, s, filepath.Join(t.TempDir(), "missing.raw"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotDecoded)
	})
	assert.Contains(t, console.String(), "Decoded payload (9 bytes): from disk")
}

func TestLiveMutualExclusion(t *testing.T) {
	live := newLive(t, 0)

	counter := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				live.Do(func(*modem.Session) { counter++ })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}

func TestTransmitWhileStepping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	tx, console := newTransmitter(t, 2, path)

	p := &layer.PhysicalLayer{Device: &device.Loopback{SampleRate: 4 * modem.DefaultSampleRate}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p.Open()
	defer p.Close()
	sched := &Scheduler{Live: tx.Live, Layer: p}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	received := p.ReceiveAsync(ctx)
	for _, line := range []string{"one", "", "two"} {
		tx.Handle(ctx, line)
	}
	payload := <-received
	cancel()
	<-done

	assert.Contains(t, []string{"one", "two"}, string(payload))
	assert.Equal(t, 3, strings.Count(console.String(), "Decoded payload"))
}

// reportWriter collects the layer's reports and signals each received payload.
type reportWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	received chan string
}

func (w *reportWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if line, ok := strings.CutPrefix(string(p), "Received: "); ok {
		select {
		case w.received <- strings.TrimSpace(line):
		default:
		}
	}
	return w.buf.Write(p)
}

func TestDuplexRun(t *testing.T) {
	var console bytes.Buffer
	report := &reportWriter{received: make(chan string, 1)}
	live := newLive(t, 2)
	p := &layer.PhysicalLayer{
		Device: &device.Loopback{SampleRate: 4 * modem.DefaultSampleRate},
		Report: report,
	}
	d := &Duplex{
		Live:      live,
		Layer:     p,
		Scheduler: &Scheduler{Live: live, Layer: p},
		Transmitter: &Transmitter{
			Live:     live,
			Protocol: 2,
			Repeat:   1,
			Console:  &console,
		},
		Input: strings.NewReader("hello\n"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	var payload string
	select {
	case payload = <-report.received:
	case <-ctx.Done():
	}
	cancel()
	require.NoError(t, <-errc)

	assert.Equal(t, "hello", payload)
	assert.Contains(t, console.String(), "Sending ...")
	live.Do(func(s *modem.Session) {
		assert.False(t, s.Decode(make([]byte, 2048)))
		assert.False(t, s.TxPending())
	})
}
