package grpc

import "github.com/arloliu/telemetry"

// Annotation keys written by the interceptors.
const (
	AnnotationServerReceived  = "ServerReceived"
	AnnotationServerSent      = "ServerSent"
	AnnotationStatusCode      = "StatusCode"
	AnnotationUserAgent       = "UserAgent"
	AnnotationClientSent      = "ClientSent"
	AnnotationClientReceived  = "ClientReceived"
	AnnotationClientException = "ClientException"
)

type options struct {
	namer          telemetry.SpanNamer
	userAgent      string
	requireHeaders bool
}

// Option configures the interceptors.
type Option func(*options)

// WithSpanNamer sets how "Service/Method" span names are rendered.
func WithSpanNamer(n telemetry.SpanNamer) Option {
	return func(o *options) {
		o.namer = n
	}
}

// WithUserAgent sets the UserAgent annotation on client spans.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithRequireHeaders only traces server calls that arrive with trace metadata.
func WithRequireHeaders() Option {
	return func(o *options) {
		o.requireHeaders = true
	}
}

func applyOptions(opts []Option) options {
	o := options{
		namer:     telemetry.DefaultNamer{},
		userAgent: "grpc-go",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namer == nil {
		o.namer = telemetry.DefaultNamer{}
	}

	return o
}
