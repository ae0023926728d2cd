// Package observe holds the OpenTelemetry instruments of the acoustic
// channel and the provider setup that exposes them to Prometheus.
//
// Every Record method is safe on a nil *Metrics, so components can run
// without observability wired in.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "Aethertalk"

// Metrics holds all metric instruments. The OTel types synchronise
// themselves.
type Metrics struct {
	// Transmissions counts payloads handed to the codec. Attributes:
	//   protocol, kind ("new" or "resend")
	Transmissions metric.Int64Counter

	// PayloadsReceived counts payloads decoded from the live capture stream.
	PayloadsReceived metric.Int64Counter

	// DroppedBlocks counts capture blocks lost because the I/O loop fell
	// behind the device.
	DroppedBlocks metric.Int64Counter

	// Verifications counts harness runs. Attribute: result
	Verifications metric.Int64Counter

	// StepDuration tracks one I/O scheduler step, lock wait included.
	StepDuration metric.Float64Histogram

	// VerifyDuration tracks one harness run.
	VerifyDuration metric.Float64Histogram
}

var stepBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

var verifyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transmissions, err = m.Int64Counter("aethertalk.transmissions",
		metric.WithDescription("Payloads handed to the codec by protocol and kind."),
	); err != nil {
		return nil, err
	}
	if met.PayloadsReceived, err = m.Int64Counter("aethertalk.payloads.received",
		metric.WithDescription("Payloads decoded from the live capture stream."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBlocks, err = m.Int64Counter("aethertalk.capture.dropped_blocks",
		metric.WithDescription("Capture blocks dropped because the I/O loop fell behind."),
	); err != nil {
		return nil, err
	}
	if met.Verifications, err = m.Int64Counter("aethertalk.verifications",
		metric.WithDescription("Round-trip verifications by result."),
	); err != nil {
		return nil, err
	}

	if met.StepDuration, err = m.Float64Histogram("aethertalk.io.step.duration",
		metric.WithDescription("Duration of one I/O scheduler step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stepBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VerifyDuration, err = m.Float64Histogram("aethertalk.verify.duration",
		metric.WithDescription("Duration of one round-trip verification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(verifyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) RecordTransmission(ctx context.Context, protocol string, resend bool) {
	if m == nil {
		return
	}
	kind := "new"
	if resend {
		kind = "resend"
	}
	m.Transmissions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("protocol", protocol),
			attribute.String("kind", kind),
		),
	)
}

func (m *Metrics) RecordReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.PayloadsReceived.Add(ctx, 1)
}

func (m *Metrics) RecordDropped(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedBlocks.Add(ctx, n)
}

// RecordVerification counts a harness run and its duration.
func (m *Metrics) RecordVerification(ctx context.Context, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	m.VerifyDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) RecordStep(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, d.Seconds())
}
