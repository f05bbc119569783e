package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arloliu/telemetry"
)

type transport struct {
	reg  *telemetry.Registry
	base http.RoundTripper
	opts options
}

// Transport wraps base so every request runs in a child span of the trace in
// its context, with the trace headers injected.
//
// A request without a trace starts one from reg and flushes it when the
// response arrives. With a nil reg such requests pass through. Requests
// sharing one trace must not be sent concurrently.
//
// If base is nil, http.DefaultTransport is used.
func Transport(reg *telemetry.Registry, base http.RoundTripper, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	o := applyOptions(opts)
	if o.mp != nil {
		base = otelhttp.NewTransport(base, metricsOptions(o.mp)...)
	}

	return &transport{reg: reg, base: base, opts: o}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	name := t.opts.namer.Name(telemetry.NameHTTP(req.Method, req.URL.String()))

	tr := telemetry.Current(ctx)
	if tr == nil && t.reg != nil {
		ctx, tr = t.reg.Fetch(ctx, telemetry.WithName(name))
	}
	if tr == nil || !tr.Active() {
		return t.base.RoundTrip(req)
	}

	var (
		resp *http.Response
		err  error
	)
	_ = tr.ApplyNewSpan(ctx, name, func(tr *telemetry.Trace, span *telemetry.Span) error {
		_ = span.Annotate(AnnotationUserAgent, t.opts.userAgent)
		_ = span.ForceAnnotate(AnnotationClientSent, "")

		out := req.Clone(ctx)
		telemetry.InjectHTTP(tr.Headers(), out.Header)

		resp, err = t.base.RoundTrip(out)
		if err != nil {
			_ = span.Annotate(AnnotationClientException, err.Error())
		}
		_ = span.ForceAnnotate(AnnotationClientReceived, "")

		return nil
	})

	return resp, err
}
