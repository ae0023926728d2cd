package config

import (
	"fmt"
	"os"
	"time"

	"Aethertalk/pkg/device"
	"Aethertalk/pkg/modem"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Device device.Config `yaml:"device"`

	Codec struct {
		SampleRate      float64 `yaml:"sample_rate"`
		SampleRateInp   float64 `yaml:"sample_rate_inp"`
		SampleRateOut   float64 `yaml:"sample_rate_out"`
		SamplesPerFrame int     `yaml:"samples_per_frame"`
		PayloadLength   int     `yaml:"payload_length"` // -1 for variable length
		MarkerThreshold float64 `yaml:"marker_threshold"`
		Volume          int     `yaml:"volume"`
	} `yaml:"codec"`

	Transmit struct {
		Protocol    int    `yaml:"protocol"`
		Repeat      int    `yaml:"repeat"`
		Verbose     bool   `yaml:"verbose"`
		ReceiveOnly bool   `yaml:"receive_only"`
		SavePath    string `yaml:"save_path"`
	} `yaml:"transmit"`

	IO struct {
		Quantum          time.Duration `yaml:"quantum"`
		InputBufferSize  int           `yaml:"input_buffer_size"`
		OutputBufferSize int           `yaml:"output_buffer_size"`
		DumpPath         string        `yaml:"dump_path"` // raw I16 copy of the capture stream
	} `yaml:"io"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

func Default() *Config {
	var c Config
	c.LogLevel = "info"

	c.Device.Backend = "loopback"
	c.Device.SampleRate = modem.DefaultSampleRate
	c.Device.CaptureChannel = 0
	c.Device.PlaybackChannel = 0

	params := modem.DefaultParameters()
	c.Codec.SampleRate = params.SampleRate
	c.Codec.SampleRateInp = params.SampleRateInp
	c.Codec.SampleRateOut = params.SampleRateOut
	c.Codec.SamplesPerFrame = params.SamplesPerFrame
	c.Codec.PayloadLength = params.PayloadLength
	c.Codec.MarkerThreshold = params.SoundMarkerThreshold
	c.Codec.Volume = params.Volume

	c.Transmit.Protocol = 0
	c.Transmit.Repeat = 1

	c.IO.Quantum = time.Millisecond
	return &c
}

// LoadConfig reads filename over the defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return config, nil
}

// Parameters derives the live session parameters.
func (c *Config) Parameters() (modem.Parameters, error) {
	params := modem.DefaultParameters()
	params.SampleRate = c.Codec.SampleRate
	params.SampleRateInp = c.Codec.SampleRateInp
	params.SampleRateOut = c.Codec.SampleRateOut
	params.SamplesPerFrame = c.Codec.SamplesPerFrame
	params.PayloadLength = c.Codec.PayloadLength
	params.SoundMarkerThreshold = c.Codec.MarkerThreshold
	params.Volume = c.Codec.Volume
	if c.Transmit.ReceiveOnly {
		params.OperatingMode = modem.ModeRX
	}
	return params, params.Validate()
}
