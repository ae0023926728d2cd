package device

import (
	"errors"
	"fmt"
)

// Device delivers mono audio in blocks of BufferSize samples at full int32
// scale. The callback runs on the device goroutine: it reads in, must fill
// all of out, and must not block.
type Device interface {
	Start(callback func(in, out []int32))
	Stop()
}

const BufferSize = 512

var ErrUnsupportedBackend = errors.New("unsupported audio backend")

// Config selects and configures a backend.
type Config struct {
	Backend         string  `yaml:"backend"` // "loopback" or "asio"
	DeviceName      string  `yaml:"device_name"`
	SampleRate      float64 `yaml:"sample_rate"`
	CaptureChannel  int     `yaml:"capture_channel"`
	PlaybackChannel int     `yaml:"playback_channel"`
	Noise           float64 `yaml:"noise"` // loopback only, fraction of full scale
	Realtime        bool    `yaml:"realtime"`
}

// Open builds the device described by cfg. The device is not started.
func Open(cfg Config) (Device, error) {
	if cfg.Realtime {
		if err := RaisePriority(); err != nil {
			return nil, fmt.Errorf("failed to raise priority: %w", err)
		}
	}

	switch cfg.Backend {
	case "", "loopback":
		return &Loopback{SampleRate: cfg.SampleRate, Noise: cfg.Noise}, nil
	case "asio":
		return openASIO(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}
