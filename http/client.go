package http

import (
	"net"
	"net/http"
	"time"

	"github.com/arloliu/telemetry"
)

// ClientConfig tunes the pooled transport behind NewClient. Zero fields keep
// the http.DefaultTransport values.
type ClientConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	DialTimeout           time.Duration `yaml:"dialTimeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tlsHandshakeTimeout"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout"`
	MaxIdleConns          int           `yaml:"maxIdleConns"`
	MaxIdleConnsPerHost   int           `yaml:"maxIdleConnsPerHost"`
	MaxConnsPerHost       int           `yaml:"maxConnsPerHost"`
	IdleConnTimeout       time.Duration `yaml:"idleConnTimeout"`
}

type clientOptions struct {
	cfg       ClientConfig
	base      http.RoundTripper
	registry  *telemetry.Registry
	traceOpts []Option
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithClientConfig replaces the transport tuning.
func WithClientConfig(cfg ClientConfig) ClientOption {
	return func(o *clientOptions) {
		o.cfg = cfg
	}
}

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.cfg.Timeout = d
	}
}

// WithTransport sets the base round tripper. An *http.Transport is cloned and
// tuned; any other round tripper is used as is.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// WithRegistry starts a trace from reg for requests sent without one.
// Requests whose context already carries a trace are traced either way.
func WithRegistry(reg *telemetry.Registry) ClientOption {
	return func(o *clientOptions) {
		o.registry = reg
	}
}

// WithTraceOptions passes options to the tracing transport, for example
// WithMeterProvider to record client metrics.
func WithTraceOptions(opts ...Option) ClientOption {
	return func(o *clientOptions) {
		o.traceOpts = append(o.traceOpts, opts...)
	}
}

// NewClient returns an http.Client whose requests carry the trace headers of
// the trace in their context.
//
//	client := telemetryhttp.NewClient(
//	    telemetryhttp.WithRegistry(reg),
//	    telemetryhttp.WithTimeout(30*time.Second),
//	)
func NewClient(opts ...ClientOption) *http.Client {
	o := clientOptions{base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	return &http.Client{
		Transport: Transport(o.registry, tune(o.base, o.cfg), o.traceOpts...),
		Timeout:   o.cfg.Timeout,
	}
}

func tune(base http.RoundTripper, cfg ClientConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	t, ok := base.(*http.Transport)
	if !ok {
		return base
	}
	t = t.Clone()

	if cfg.DialTimeout > 0 {
		t.DialContext = (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	setPositive(&t.TLSHandshakeTimeout, cfg.TLSHandshakeTimeout)
	setPositive(&t.ResponseHeaderTimeout, cfg.ResponseHeaderTimeout)
	setPositive(&t.IdleConnTimeout, cfg.IdleConnTimeout)
	setPositive(&t.MaxIdleConns, cfg.MaxIdleConns)
	setPositive(&t.MaxIdleConnsPerHost, cfg.MaxIdleConnsPerHost)
	setPositive(&t.MaxConnsPerHost, cfg.MaxConnsPerHost)

	return t
}

func setPositive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
