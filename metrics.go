package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/arloliu/telemetry"

// instruments holds the core's self-observability metrics.
// A nil *instruments is valid and records nothing.
type instruments struct {
	tracesStarted       metric.Int64Counter
	tracesFlushed       metric.Int64Counter
	overrideFailures    metric.Int64Counter
	postProcessFailures metric.Int64Counter
	postProcessWait     metric.Float64Histogram
}

// newInstruments creates the instruments on mp, falling back to the global
// MeterProvider when mp is nil. Instrument creation errors are reported via
// otel.Handle and replaced by no-op instruments.
func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	m := &instruments{}
	var err error

	if m.tracesStarted, err = meter.Int64Counter("telemetry.traces.started",
		metric.WithDescription("Traces constructed, by admission decision."),
		metric.WithUnit("{trace}"),
	); err != nil {
		otel.Handle(err)
		m.tracesStarted, _ = fallback.Int64Counter("telemetry.traces.started")
	}

	if m.tracesFlushed, err = meter.Int64Counter("telemetry.traces.flushed",
		metric.WithDescription("Traces handed to the sink."),
		metric.WithUnit("{trace}"),
	); err != nil {
		otel.Handle(err)
		m.tracesFlushed, _ = fallback.Int64Counter("telemetry.traces.flushed")
	}

	if m.overrideFailures, err = meter.Int64Counter("telemetry.override.failures",
		metric.WithDescription("Override predicate evaluations that failed closed."),
	); err != nil {
		otel.Handle(err)
		m.overrideFailures, _ = fallback.Int64Counter("telemetry.override.failures")
	}

	if m.postProcessFailures, err = meter.Int64Counter("telemetry.postprocess.failures",
		metric.WithDescription("Post-process tasks that returned an error or panicked."),
	); err != nil {
		otel.Handle(err)
		m.postProcessFailures, _ = fallback.Int64Counter("telemetry.postprocess.failures")
	}

	if m.postProcessWait, err = meter.Float64Histogram("telemetry.postprocess.wait",
		metric.WithDescription("Time span stop spent waiting on post-process tasks."),
		metric.WithUnit("ms"),
	); err != nil {
		otel.Handle(err)
		m.postProcessWait, _ = fallback.Float64Histogram("telemetry.postprocess.wait")
	}

	return m
}

func (m *instruments) traceStarted(ctx context.Context, admitted bool) {
	if m == nil {
		return
	}
	m.tracesStarted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("admitted", admitted)))
}

func (m *instruments) traceFlushed(ctx context.Context) {
	if m == nil {
		return
	}
	m.tracesFlushed.Add(ctx, 1)
}

func (m *instruments) overrideFailed() {
	if m == nil {
		return
	}
	m.overrideFailures.Add(context.Background(), 1)
}

func (m *instruments) postProcessFailed(name string) {
	if m == nil {
		return
	}
	m.postProcessFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("task", name)))
}

func (m *instruments) postProcessWaited(d time.Duration) {
	if m == nil {
		return
	}
	m.postProcessWait.Record(context.Background(), float64(d)/float64(time.Millisecond))
}
