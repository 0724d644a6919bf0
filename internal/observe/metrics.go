// SPDX-License-Identifier: EPL-2.0

// Package observe holds the OpenTelemetry instruments used by the mixing
// engine and the setup of the meter provider.
//
// Instruments are created through the OpenTelemetry Metrics API. Library
// code falls back to [DefaultMetrics], which is bound to the global meter
// provider and records nothing until [InitProvider] installs an SDK
// provider. Tests should use [NewMetrics] with their own provider.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every audmix instrument.
const meterName = "github.com/ik5/audmix"

// Metrics holds the instruments of the merge engine and the decode workers.
// All fields are safe for concurrent use.
type Metrics struct {
	// MergeReads counts Read calls on merge engines.
	MergeReads metric.Int64Counter

	// MergeFrames counts merged frames handed to callers.
	MergeFrames metric.Int64Counter

	// Resyncs counts zero-length reads caused by a position or ratio jump.
	Resyncs metric.Int64Counter

	// DriftClamps counts reads shortened because a stream ran ahead.
	DriftClamps metric.Int64Counter

	// StreamErrors counts stream read errors. Attributes:
	//   attribute.String("stream", ...), attribute.Bool("primary", ...)
	StreamErrors metric.Int64Counter

	// DiscardedStreams counts streams dropped at finish time for an
	// incompatible channel count.
	DiscardedStreams metric.Int64Counter

	// PrefetchUnderruns counts reads that found no decoded audio buffered.
	PrefetchUnderruns metric.Int64Counter

	// ReadDuration tracks the wall time of a merge Read.
	ReadDuration metric.Float64Histogram
}

// readBuckets are histogram boundaries in seconds sized for audio callback
// budgets (a 1024 frame block at 48 kHz is ~21ms).
var readBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MergeReads, err = m.Int64Counter("audmix.merge.reads",
		metric.WithDescription("Read calls served by merge engines."),
	); err != nil {
		return nil, err
	}
	if met.MergeFrames, err = m.Int64Counter("audmix.merge.frames",
		metric.WithDescription("Merged frames produced."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if met.Resyncs, err = m.Int64Counter("audmix.merge.resyncs",
		metric.WithDescription("Zero-length reads issued to resynchronize the engine position."),
	); err != nil {
		return nil, err
	}
	if met.DriftClamps, err = m.Int64Counter("audmix.merge.drift_clamps",
		metric.WithDescription("Reads shortened because a stream drifted past tolerance."),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("audmix.merge.stream_errors",
		metric.WithDescription("Stream read errors seen while merging."),
	); err != nil {
		return nil, err
	}
	if met.DiscardedStreams, err = m.Int64Counter("audmix.merge.discarded_streams",
		metric.WithDescription("Streams dropped for an incompatible channel count."),
	); err != nil {
		return nil, err
	}
	if met.PrefetchUnderruns, err = m.Int64Counter("audmix.prefetch.underruns",
		metric.WithDescription("Reads that found no decoded audio buffered."),
	); err != nil {
		return nil, err
	}
	if met.ReadDuration, err = m.Float64Histogram("audmix.merge.read.duration",
		metric.WithDescription("Wall time of a merge Read."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(readBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails, which
// does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStreamError increments StreamErrors for the stream at index.
func (m *Metrics) RecordStreamError(ctx context.Context, index int, primary bool) {
	m.StreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stream", strconv.Itoa(index)),
			attribute.Bool("primary", primary),
		),
	)
}
