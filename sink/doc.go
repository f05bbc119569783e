// Package sink delivers flushed traces to their destination.
//
// A [Sink] wraps exactly one [Backend] and owns the failure policy: backend
// errors and panics are logged together with the record that could not be
// delivered, counted, and never surface to the code being traced.
//
// Backends, in the order [New] selects them from the config:
//   - [LogFile]: one JSON line per trace appended to a file
//   - [HTTP]: a JSON POST per trace to a collector endpoint
//   - [Exporter]: conversion into OTel spans for any sdktrace.SpanExporter
//   - [NATS]: a JetStream publish per trace
//   - [Memory]: an in-process slice, for tests
//
// Wire a sink into a registry with [FromConfig]:
//
//	reg, err := telemetry.NewRegistry(ctx, cfg, telemetry.WithSinkFactory(sink.FromConfig))
package sink
