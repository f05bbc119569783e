package sink

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arloliu/telemetry"
	"github.com/arloliu/telemetry/otlp"
)

// Attribute keys set on exported spans.
const (
	AttrTainted             = attribute.Key("telemetry.tainted")
	AttrTraceID             = attribute.Key("telemetry.trace_id")
	AttrInstrumentationTime = attribute.Key("telemetry.instrumentation_time_ns")
	AttrAnnotationValue     = attribute.Key("telemetry.annotation.value")
	AttrTimeToProcess       = attribute.Key("telemetry.annotation.time_to_process_ns")
	AttrException           = attribute.Key("exception.message")
)

// Exporter converts records into OTel spans and hands them to a span
// exporter. Annotations become span events.
type Exporter struct {
	exporter sdktrace.SpanExporter
	res      *resource.Resource
	scope    instrumentation.Scope
}

// NewExporter wraps exp. A nil res uses resource.Default().
func NewExporter(exp sdktrace.SpanExporter, res *resource.Resource) *Exporter {
	if res == nil {
		res = resource.Default()
	}

	return &Exporter{
		exporter: exp,
		res:      res,
		scope:    instrumentation.Scope{Name: instrumentationName},
	}
}

func newExporterFromConfig(ctx context.Context, cfg *telemetry.Config, exp sdktrace.SpanExporter, logger *zap.Logger) (*Exporter, error) {
	if exp == nil {
		var err error
		if exp, err = otlp.NewSpanExporter(ctx, cfg); err != nil {
			return nil, fmt.Errorf("build span exporter: %w", err)
		}
	}

	res, err := otlp.NewResource(ctx, cfg)
	if err != nil {
		logger.Warn("telemetry: using default resource for exported traces", zap.Error(err))
		res = nil
	}

	return NewExporter(exp, res), nil
}

// Name implements Backend.
func (e *Exporter) Name() string { return "exporter" }

// Process implements Backend.
func (e *Exporter) Process(ctx context.Context, rec *telemetry.Record) error {
	return e.exporter.ExportSpans(ctx, e.Spans(rec))
}

// Spans converts rec into read-only span snapshots.
func (e *Exporter) Spans(rec *telemetry.Record) []sdktrace.ReadOnlySpan {
	traceID := toTraceID(rec.ID)
	stubs := make(tracetest.SpanStubs, 0, len(rec.Spans))

	for i, sr := range rec.Spans {
		stub := tracetest.SpanStub{
			Name: sr.Name,
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     toSpanID(sr.ID),
				TraceFlags: trace.FlagsSampled,
			}),
			SpanKind:             trace.SpanKindInternal,
			StartTime:            unixNano(sr.StartTime),
			EndTime:              unixNano(sr.StopTime),
			Resource:             e.res,
			InstrumentationScope: e.scope,
		}
		if sr.ParentSpanID != "" {
			stub.Parent = trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     toSpanID(sr.ParentSpanID),
				TraceFlags: trace.FlagsSampled,
				// The root's parent lives in the calling process.
				Remote: i == 0,
			})
		}

		stub.Attributes = append(stub.Attributes, AttrTraceID.String(rec.ID))
		if i == 0 {
			if rec.Tainted != "" {
				stub.Attributes = append(stub.Attributes, AttrTainted.String(rec.Tainted))
			}
			if sr.PID != 0 {
				stub.Attributes = append(stub.Attributes, semconv.ProcessPID(sr.PID))
			}
			if sr.Hostname != "" {
				stub.Attributes = append(stub.Attributes, semconv.HostName(sr.Hostname))
			}
			if sr.InstrumentationTime != nil {
				stub.Attributes = append(stub.Attributes, AttrInstrumentationTime.Int64(*sr.InstrumentationTime))
			}
		}

		for _, a := range sr.Annotations {
			attrs := []attribute.KeyValue{AttrAnnotationValue.String(fmt.Sprint(a.Value))}
			if a.ProcessingDuration != nil {
				attrs = append(attrs, AttrTimeToProcess.Int64(a.ProcessingDuration.Nanoseconds()))
			}
			if a.Exception != "" {
				attrs = append(attrs, AttrException.String(a.Exception))
				stub.Status = sdktrace.Status{Code: codes.Error, Description: a.Key}
			}
			stub.Events = append(stub.Events, sdktrace.Event{
				Name:       a.Key,
				Time:       unixNano(a.Timestamp),
				Attributes: attrs,
			})
		}

		stubs = append(stubs, stub)
	}

	return stubs.Snapshots()
}

// Close implements Backend. It shuts the exporter down, flushing pending spans.
func (e *Exporter) Close(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func unixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}

// toID maps a decimal id to its numeric value and folds any other string
// with xxhash.
func toID(id string) uint64 {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}

	return xxhash.Sum64String(id)
}

func toTraceID(id string) trace.TraceID {
	var tid trace.TraceID
	binary.BigEndian.PutUint64(tid[8:], toID(id))

	return tid
}

func toSpanID(id string) trace.SpanID {
	var sid trace.SpanID
	binary.BigEndian.PutUint64(sid[:], toID(id))

	return sid
}
