package otlp

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/arloliu/telemetry"
)

// Kind selects an exporter implementation.
type Kind int

// Exporter kinds.
const (
	KindOTLP Kind = iota
	KindConsole
	KindNone
)

// ParseKind maps an exporter name from the config to a Kind. Unknown and
// empty names select OTLP.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "console", "stdout":
		return KindConsole
	case "none", "nop", "noop":
		return KindNone
	default:
		return KindOTLP
	}
}

func (k Kind) String() string {
	switch k {
	case KindConsole:
		return "console"
	case KindNone:
		return "none"
	default:
		return "otlp"
	}
}

// target is the collector an OTLP exporter talks to.
type target struct {
	endpoint string
	useHTTP  bool
	headers  map[string]string
	timeout  time.Duration
	gzip     bool
	insecure bool
}

// targetFor reads cfg.OTLP. A non-empty endpoint replaces the configured one.
func targetFor(cfg *telemetry.Config, endpoint string) target {
	t := target{
		endpoint: "localhost:4317",
		timeout:  10 * time.Second,
		insecure: true,
	}
	if cfg != nil {
		o := cfg.GetOTLPConfig()
		if o.Endpoint != "" {
			t.endpoint = o.Endpoint
		}
		t.useHTTP = o.Protocol == "http/protobuf" || o.Protocol == "http"
		t.headers = o.Headers
		if o.Timeout > 0 {
			t.timeout = millis(o.Timeout)
		}
		t.gzip = o.Compression == "gzip"
		t.insecure = o.IsInsecure()
	}
	if endpoint != "" {
		t.endpoint = endpoint
	}

	return t
}

// setters holds the option constructors of one OTLP exporter package.
// endpointURL is nil for gRPC packages.
type setters[T any] struct {
	endpoint    func(string) T
	endpointURL func(string) T
	headers     func(map[string]string) T
	timeout     func(time.Duration) T
	insecure    func() T
	gzip        func() T
}

func (s setters[T]) options(t target) []T {
	var opts []T
	if s.endpointURL != nil && hasHTTPScheme(t.endpoint) {
		opts = append(opts, s.endpointURL(t.endpoint))
	} else {
		opts = append(opts, s.endpoint(t.endpoint))
	}
	if len(t.headers) > 0 {
		opts = append(opts, s.headers(t.headers))
	}
	if t.timeout > 0 {
		opts = append(opts, s.timeout(t.timeout))
	}
	if t.insecure {
		opts = append(opts, s.insecure())
	}
	if t.gzip {
		opts = append(opts, s.gzip())
	}

	return opts
}

func hasHTTPScheme(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)

	return scheme == "http" || scheme == "https"
}

// NopSpanExporter drops every span. It backs the "none" sink exporter.
type NopSpanExporter struct{}

func (NopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (NopSpanExporter) Shutdown(context.Context) error                            { return nil }

// NewSpanExporter creates the span exporter selected by sink.exporter.
func NewSpanExporter(ctx context.Context, cfg *telemetry.Config) (sdktrace.SpanExporter, error) {
	switch ParseKind(cfg.GetSinkConfig().Exporter) {
	case KindConsole:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case KindNone:
		return NopSpanExporter{}, nil
	}

	t := targetFor(cfg, "")
	if t.useHTTP {
		return otlptracehttp.New(ctx, setters[otlptracehttp.Option]{
			endpoint:    otlptracehttp.WithEndpoint,
			endpointURL: otlptracehttp.WithEndpointURL,
			headers:     otlptracehttp.WithHeaders,
			timeout:     otlptracehttp.WithTimeout,
			insecure:    otlptracehttp.WithInsecure,
			gzip:        func() otlptracehttp.Option { return otlptracehttp.WithCompression(otlptracehttp.GzipCompression) },
		}.options(t)...)
	}

	return otlptracegrpc.New(ctx, setters[otlptracegrpc.Option]{
		endpoint: otlptracegrpc.WithEndpoint,
		headers:  otlptracegrpc.WithHeaders,
		timeout:  otlptracegrpc.WithTimeout,
		insecure: otlptracegrpc.WithInsecure,
		gzip:     func() otlptracegrpc.Option { return otlptracegrpc.WithCompressor("gzip") },
	}.options(t)...)
}

// newMetricExporter creates the exporter selected by metrics.exporter, sending
// to metrics.endpoint when set.
func newMetricExporter(ctx context.Context, cfg *telemetry.Config) (sdkmetric.Exporter, error) {
	var name, endpoint string
	if cfg != nil && cfg.Metrics != nil {
		name, endpoint = cfg.Metrics.Exporter, cfg.Metrics.Endpoint
	}

	switch ParseKind(name) {
	case KindConsole:
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	case KindNone:
		return nopMetricExporter{}, nil
	}

	t := targetFor(cfg, endpoint)
	if t.useHTTP {
		return otlpmetrichttp.New(ctx, setters[otlpmetrichttp.Option]{
			endpoint:    otlpmetrichttp.WithEndpoint,
			endpointURL: otlpmetrichttp.WithEndpointURL,
			headers:     otlpmetrichttp.WithHeaders,
			timeout:     otlpmetrichttp.WithTimeout,
			insecure:    otlpmetrichttp.WithInsecure,
			gzip:        func() otlpmetrichttp.Option { return otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression) },
		}.options(t)...)
	}

	return otlpmetricgrpc.New(ctx, setters[otlpmetricgrpc.Option]{
		endpoint: otlpmetricgrpc.WithEndpoint,
		headers:  otlpmetricgrpc.WithHeaders,
		timeout:  otlpmetricgrpc.WithTimeout,
		insecure: otlpmetricgrpc.WithInsecure,
		gzip:     func() otlpmetricgrpc.Option { return otlpmetricgrpc.WithCompressor("gzip") },
	}.options(t)...)
}

type nopMetricExporter struct{}

func (nopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (nopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}
func (nopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}
func (nopMetricExporter) ForceFlush(context.Context) error { return nil }
func (nopMetricExporter) Shutdown(context.Context) error   { return nil }

// millis reads sub-millisecond durations as milliseconds, the unit of
// numeric OTEL_* env values.
func millis(d time.Duration) time.Duration {
	if d > 0 && d < time.Millisecond {
		//nolint:durationcheck // numeric env values are milliseconds
		return d * time.Millisecond
	}

	return d
}
