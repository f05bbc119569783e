package http

import (
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/arloliu/telemetry"
)

// Annotation keys written by the middleware and the transport.
const (
	AnnotationServerReceived  = "ServerReceived"
	AnnotationServerSent      = "ServerSent"
	AnnotationStatusCode      = "StatusCode"
	AnnotationServiceName     = "ServiceName"
	AnnotationUserAgent       = "UserAgent"
	AnnotationClientSent      = "ClientSent"
	AnnotationClientReceived  = "ClientReceived"
	AnnotationClientException = "ClientException"
)

const defaultUserAgent = "telemetry-go"

type options struct {
	namer          telemetry.SpanNamer
	serviceName    string
	userAgent      string
	mp             metric.MeterProvider
	requireHeaders bool
}

// Option configures Middleware and Transport.
type Option func(*options)

// WithSpanNamer sets how "METHOD /path" span names are rendered.
func WithSpanNamer(n telemetry.SpanNamer) Option {
	return func(o *options) {
		o.namer = n
	}
}

// WithServiceName annotates server spans with the service name.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithUserAgent sets the UserAgent annotation on client spans.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithMeterProvider records otelhttp request metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// WithRequireHeaders only traces requests that arrive with trace headers.
func WithRequireHeaders() Option {
	return func(o *options) {
		o.requireHeaders = true
	}
}

func applyOptions(opts []Option) options {
	o := options{
		namer:     telemetry.DefaultNamer{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namer == nil {
		o.namer = telemetry.DefaultNamer{}
	}

	return o
}

// metricsOptions configures otelhttp to record metrics only.
func metricsOptions(mp metric.MeterProvider) []otelhttp.Option {
	return []otelhttp.Option{
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithTracerProvider(tracenoop.NewTracerProvider()),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	}
}
