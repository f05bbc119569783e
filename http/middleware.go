package http

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arloliu/telemetry"
)

// Middleware returns middleware that applies a trace around each request.
//
// The inbound trace headers continue the caller's trace. A trace already in
// the request context, such as one from an outer Middleware, is reused and
// gets a child span. Requests the registry does not admit pass through
// untouched.
func Middleware(reg *telemetry.Registry, opts ...Option) func(http.Handler) http.Handler {
	o := applyOptions(opts)

	return func(next http.Handler) http.Handler {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := o.namer.Name(telemetry.NameHTTP(r.Method, r.URL.Path))

			traceOpts := []telemetry.TraceOption{
				telemetry.FromHeaders(telemetry.ExtractHTTP(r.Header)),
				telemetry.WithName(name),
			}
			if o.requireHeaders {
				traceOpts = append(traceOpts, telemetry.RequireHeaders())
			}

			ctx, tr := reg.Fetch(r.Context(), traceOpts...)
			r = r.WithContext(ctx)
			if !tr.Active() {
				next.ServeHTTP(w, r)
				return
			}

			_ = tr.Apply(ctx, name, func(tr *telemetry.Trace) error {
				_ = tr.ForceAnnotate(AnnotationServerReceived, "")
				_ = tr.Annotate(AnnotationServiceName, o.serviceName)

				m := httpsnoop.CaptureMetrics(next, w, r)

				_ = tr.ForceAnnotate(AnnotationServerSent, "")
				_ = tr.Annotate(AnnotationStatusCode, strconv.Itoa(m.Code))

				return nil
			})
		})

		if o.mp != nil {
			return otelhttp.NewHandler(h, "http.server", metricsOptions(o.mp)...)
		}

		return h
	}
}
