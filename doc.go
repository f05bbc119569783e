// Package telemetry is a distributed-tracing instrumentation core.
//
// # Overview
//
// The package creates trace and span context, decides per request whether to
// record, attaches timestamped annotations and deferred computations to spans,
// and hands every completed trace to a pluggable [Sink] exactly once:
//   - Probabilistic sampling from a configured ratio ([ParseSampleRatio])
//   - An admission controller combining the enabled flag, a host filter,
//     sampling and a fail-closed runtime override ([Runner])
//   - Spans with annotations and asynchronous post-process tasks ([Span])
//   - Traces with a current-span cursor and exactly-once flush ([Trace])
//   - X-Telemetry-TraceId / X-Telemetry-SpanId header propagation
//
// # Quick Start
//
//	cfg, err := telemetry.LoadConfig("telemetry.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, _ := telemetry.NewErrorLogger(cfg.ErrorLog)
//	reg, err := telemetry.NewRegistry(ctx, cfg,
//	    telemetry.WithLogger(logger),
//	    telemetry.WithSinkFactory(sink.FromConfig),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	telemetry.SetDefault(reg)
//
// Trace an operation:
//
//	ctx, tr := reg.Fetch(ctx, telemetry.FromHeaders(inbound))
//	err := tr.Apply(ctx, "ProcessBatch", func(tr *telemetry.Trace) error {
//	    tr.Annotate("batch.size", strconv.Itoa(len(batch)))
//	    tr.PostProcess("checksum", func() (any, error) { return checksum(batch) })
//
//	    return process(ctx, batch)
//	})
//
// Nested Apply calls open child spans. Only the outermost Apply flushes.
//
// # Configuration
//
// Configure via YAML or environment variables:
//
//	enabled: true               # TELEMETRY_ENABLED
//	serviceName: "checkout"     # OTEL_SERVICE_NAME
//	sampleRatio: "0.5"          # TELEMETRY_SAMPLE_RATIO, 5 out of 1000
//	runOnHosts: "^web-"         # TELEMETRY_RUN_ON_HOSTS
//	sink:
//	  httpEndpoint: "http://collector:9411"
//
// # Adapters
//
// The http, grpc and nats sub-packages propagate the trace headers across
// process boundaries. The sink sub-package provides the output backends.
package telemetry
