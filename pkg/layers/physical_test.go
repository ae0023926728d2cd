package layer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"Aethertalk/internel/callbacks"
	"Aethertalk/pkg/device"
	"Aethertalk/pkg/modem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProtocol modem.ProtocolID = 2

func newSession(t *testing.T) *modem.Session {
	t.Helper()
	params := modem.DefaultParameters()
	params.RxProtocols = modem.DefaultProtocols().Only(testProtocol)
	s, err := modem.New(params)
	require.NoError(t, err)
	return s
}

// pump steps the layer until a payload arrives or the timeout expires.
func pump(t *testing.T, p *PhysicalLayer, s *modem.Session, timeout time.Duration) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	received := p.ReceiveAsync(ctx)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case payload := <-received:
			return payload
		case <-ticker.C:
			p.Step(ctx, s)
		}
	}
}

func TestPhysicalLayerLoopback(t *testing.T) {
	var report bytes.Buffer
	recorder := &callbacks.Recorder{}
	p := &PhysicalLayer{
		Device:   &device.Loopback{SampleRate: 4 * modem.DefaultSampleRate},
		Report:   &report,
		Recorder: recorder,
	}
	p.Open()
	defer p.Close()

	s := newSession(t)
	require.NoError(t, s.Init([]byte("ping"), testProtocol, 1))

	payload := pump(t, p, s, 10*time.Second)
	assert.Equal(t, []byte("ping"), payload)
	assert.False(t, s.TxPending())
	assert.Contains(t, report.String(), "Received: ping")
	assert.NotEmpty(t, recorder.Track())
}

func TestPhysicalLayerNetwork(t *testing.T) {
	sender := newSession(t)
	require.NoError(t, sender.Init([]byte("over the air"), testProtocol, 1))
	size := sender.Encode()
	track := modem.BytesToInt32(sender.TxWaveform()[:size], modem.SampleFormatI16)

	network := device.Network[string]{
		SampleRate: 4 * modem.DefaultSampleRate,
		Config: device.NetworkConfig[string]{
			{In: "air", Out: "air"},
			{In: "air", Out: "air"},
		},
	}
	devs := network.Build()
	defer network.Stop()

	p := &PhysicalLayer{Device: devs[0]}
	p.Open()

	player := &callbacks.Player{Track: track}
	devs[1].Start(player.Update)

	receiver := newSession(t)
	assert.Equal(t, []byte("over the air"), pump(t, p, receiver, 10*time.Second))

	// the trailing silence and frame padding are still being played
	assert.Eventually(t, player.Done, 5*time.Second, time.Millisecond)
}

func TestPhysicalLayerDropsWhenBehind(t *testing.T) {
	p := &PhysicalLayer{
		Device:          &device.Loopback{},
		InputBufferSize: 1,
	}
	p.Open()
	for p.Dropped() == 0 {
		time.Sleep(time.Millisecond)
	}
	p.Close()

	s := newSession(t)
	p.Step(context.Background(), s)
	assert.Positive(t, p.Dropped())
}

func TestPhysicalLayerWritePadsWithSilence(t *testing.T) {
	p := &PhysicalLayer{playback: make(chan []int32, 2)}
	p.playback <- []int32{1, 2, 3}
	p.playback <- []int32{4}

	out := make([]int32, 6)
	p.write(out)
	assert.Equal(t, []int32{1, 2, 3, 4, 0, 0}, out)

	out = []int32{9, 9}
	p.write(out)
	assert.Equal(t, []int32{0, 0}, out)
}
