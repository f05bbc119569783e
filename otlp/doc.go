// Package otlp builds the OpenTelemetry plumbing used around the tracing core:
// the resource describing this process, the span exporter behind the OTLP
// sink and the meter provider that exports the core's own metrics.
//
// Exporter selection follows the "otlp", "console" (alias "stdout") and
// "none" names used throughout the configuration. OTLP endpoints are reached
// over gRPC by default, or over HTTP when otlp.protocol is "http/protobuf".
package otlp
