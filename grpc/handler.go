package grpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/stats"
)

// ServerHandler returns a gRPC stats.Handler recording server RPC metrics.
// If mp is nil, the global MeterProvider is used.
func ServerHandler(mp metric.MeterProvider, opts ...otelgrpc.Option) stats.Handler {
	return otelgrpc.NewServerHandler(append(metricsOptions(mp), opts...)...)
}

// ClientHandler returns a gRPC stats.Handler recording client RPC metrics.
// If mp is nil, the global MeterProvider is used.
func ClientHandler(mp metric.MeterProvider, opts ...otelgrpc.Option) stats.Handler {
	return otelgrpc.NewClientHandler(append(metricsOptions(mp), opts...)...)
}

// metricsOptions configures otelgrpc to record metrics only. Spans and
// propagation belong to the interceptors.
func metricsOptions(mp metric.MeterProvider) []otelgrpc.Option {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	return []otelgrpc.Option{
		otelgrpc.WithMeterProvider(mp),
		otelgrpc.WithTracerProvider(tracenoop.NewTracerProvider()),
		otelgrpc.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	}
}
