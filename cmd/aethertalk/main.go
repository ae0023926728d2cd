package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Aethertalk/cmd/aethertalk/config"
	"Aethertalk/internel/callbacks"
	"Aethertalk/internel/utils"
	"Aethertalk/pkg/device"
	"Aethertalk/pkg/duplex"
	layer "Aethertalk/pkg/layers"
	"Aethertalk/pkg/modem"
	"Aethertalk/pkg/observe"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK              = 0
	exitSessionInit     = -1
	exitConfig          = -2
	exitInvalidProtocol = -3
	exitLoadFile        = -4
)

// dumpLimit caps the recorded capture stream at ten minutes of audio.
const dumpLimit = 10 * 60 * 44100

type options struct {
	configPath string
	loadPath   string
}

// parseArgs applies the command line over the config file named by -config.
// Only flags that are set override the file.
func parseArgs(args []string) (*config.Config, options, error) {
	fs := flag.NewFlagSet("aethertalk", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	capture := fs.Int("c", 0, "capture device channel")
	playback := fs.Int("p", 0, "playback device channel")
	protocol := fs.Int("t", 0, "transmission protocol")
	length := fs.Int("l", -1, fmt.Sprintf("fixed payload length in [1, %d], -1 for variable", modem.MaxLengthFixed))
	verbose := fs.Bool("v", false, "print generated tones on resend")
	receiveOnly := fs.Bool("r", false, "receive only mode (disable transmission)")
	savePath := fs.String("s", "", "save the encoded waveform to this file and verify it")
	fs.StringVar(&opts.loadPath, "f", "", "decode a waveform file and exit")
	repeat := fs.Int("repeat", 1, "number of times each payload is sent")
	backend := fs.String("backend", "loopback", "audio backend: loopback or asio")
	logLevel := fs.String("log-level", "info", "log level")
	metrics := fs.String("metrics", "", "listen address of the Prometheus endpoint")
	dump := fs.String("dump", "", "save the raw capture stream to this file on exit")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, opts, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			cfg.Device.CaptureChannel = *capture
		case "p":
			cfg.Device.PlaybackChannel = *playback
		case "t":
			cfg.Transmit.Protocol = *protocol
		case "l":
			cfg.Codec.PayloadLength = *length
		case "v":
			cfg.Transmit.Verbose = *verbose
		case "r":
			cfg.Transmit.ReceiveOnly = *receiveOnly
		case "s":
			cfg.Transmit.SavePath = *savePath
		case "repeat":
			cfg.Transmit.Repeat = *repeat
		case "backend":
			cfg.Device.Backend = *backend
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics":
			cfg.Metrics.Listen = *metrics
		case "dump":
			cfg.IO.DumpPath = *dump
		}
	})
	return cfg, opts, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	cfg, opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitConfig
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	params, err := cfg.Parameters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	session, err := modem.New(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize the codec session: %v\n", err)
		return exitSessionInit
	}
	logrus.WithFields(logrus.Fields{
		"payload_length":    params.PayloadLength,
		"samples_per_frame": session.SamplesPerFrame(),
		"sample_rate_inp":   params.SampleRateInp,
		"sample_rate_out":   params.SampleRateOut,
		"marker_threshold":  params.SoundMarkerThreshold,
	}).Info("Codec session ready")

	if opts.loadPath != "" {
		if _, err := duplex.DecodeFile(stdout, session, opts.loadPath); err != nil && !errors.Is(err, duplex.ErrNotDecoded) {
			fmt.Fprintf(os.Stderr, "Failed to open file: %s: %v\n", opts.loadPath, err)
			return exitLoadFile
		}
		return exitOK
	}

	id := modem.ProtocolID(cfg.Transmit.Protocol)
	if cfg.Transmit.ReceiveOnly {
		fmt.Fprintln(stdout, "Receive only mode enabled")
	} else {
		protocols := modem.DefaultProtocols()
		fmt.Fprintln(stdout, "Available Tx protocols:")
		for _, p := range protocols.Enabled() {
			fmt.Fprintf(stdout, "      %d - %s\n", p.ID, p.Name)
		}
		if _, err := protocols.Get(id); err != nil {
			fmt.Fprintf(os.Stderr, "Unknown Tx protocol %d: %v\n", id, err)
			return exitInvalidProtocol
		}
		fmt.Fprintf(stdout, "Selecting Tx protocol %d\n", id)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observe.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Listen != "" {
		mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize metrics: %v\n", err)
			return exitConfig
		}
		defer shutdown(context.Background())
		if metrics, err = observe.NewMetrics(mp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize metrics: %v\n", err)
			return exitConfig
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	dev, err := device.Open(cfg.Device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open the audio device: %v\n", err)
		return exitSessionInit
	}

	var recorder *callbacks.Recorder
	if cfg.IO.DumpPath != "" {
		recorder = &callbacks.Recorder{Limit: dumpLimit}
	}

	live := duplex.NewLive(session)
	physical := &layer.PhysicalLayer{
		Device:           dev,
		InputBufferSize:  cfg.IO.InputBufferSize,
		OutputBufferSize: cfg.IO.OutputBufferSize,
		Report:           stdout,
		Recorder:         recorder,
		Metrics:          metrics,
	}
	d := &duplex.Duplex{
		Live:  live,
		Layer: physical,
		Scheduler: &duplex.Scheduler{
			Live:    live,
			Layer:   physical,
			Quantum: cfg.IO.Quantum,
			Metrics: metrics,
		},
		Input: stdin,
	}
	if !cfg.Transmit.ReceiveOnly {
		d.Transmitter = &duplex.Transmitter{
			Live:     live,
			Protocol: id,
			Repeat:   cfg.Transmit.Repeat,
			Verbose:  cfg.Transmit.Verbose,
			Console:  stdout,
			Metrics:  metrics,
		}
		if cfg.Transmit.SavePath != "" {
			d.Transmitter.Harness = &duplex.Harness{
				Path:    cfg.Transmit.SavePath,
				Console: stdout,
				Metrics: metrics,
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Run(gctx)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logrus.WithField("listen", metricsServer.Addr).Info("Serving metrics")
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	<-gctx.Done()
	if ctx.Err() != nil {
		fmt.Fprintln(stdout, "\nReceived Ctrl+C, exiting...")
	}
	code := exitOK
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("Shutdown with error")
		code = exitConfig
	}

	if recorder != nil {
		if err := utils.WriteBinary(cfg.IO.DumpPath, modem.Int32ToBytes(recorder.Track(), modem.SampleFormatI16)); err != nil {
			logrus.WithError(err).Error("Failed to save the capture stream")
		} else {
			fmt.Fprintf(stdout, "Saved capture stream to %s\n", cfg.IO.DumpPath)
		}
	}
	return code
}
