// Package http propagates telemetry traces across HTTP boundaries.
//
// # HTTP Server
//
// Middleware continues the caller's trace from the X-Telemetry-TraceId and
// X-Telemetry-SpanId headers, or starts a new one, and applies it around the
// handler:
//
//	mux.Handle("/api/", telemetryhttp.Middleware(reg)(apiHandler))
//
// The root span is named "METHOD /path" and carries the ServerReceived,
// ServerSent and StatusCode annotations.
//
// # HTTP Client
//
// Transport opens a child span per outbound request and injects the headers:
//
//	client := telemetryhttp.NewClient(
//	    telemetryhttp.WithRegistry(reg),
//	    telemetryhttp.WithTimeout(30 * time.Second),
//	)
//	resp, err := client.Do(req.WithContext(ctx))
//
// WithMeterProvider adds otelhttp request metrics on either side. OTel
// tracing itself stays disabled; the trace lives in the telemetry core.
package http
