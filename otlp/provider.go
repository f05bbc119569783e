package otlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/arloliu/telemetry"
)

// ErrMetricsDisabled is returned when metrics export is disabled.
var ErrMetricsDisabled = errors.New("otlp: metrics export is disabled")

// ErrServiceNameRequired is returned when ServiceName is empty.
var ErrServiceNameRequired = errors.New("otlp: service name is required")

// NewMeterProvider builds a MeterProvider exporting the core's own metrics and
// installs it as the global provider. Returns ErrMetricsDisabled unless
// metrics.enabled is set.
func NewMeterProvider(ctx context.Context, cfg *telemetry.Config) (*sdkmetric.MeterProvider, error) {
	if cfg == nil || !cfg.Metrics.IsEnabled() {
		return nil, ErrMetricsDisabled
	}

	res, err := NewResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	interval := metricInterval(cfg.Metrics.Interval)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewResource describes this process: service identity from cfg plus the
// host name and pid recorded on root spans.
func NewResource(ctx context.Context, cfg *telemetry.Config) (*resource.Resource, error) {
	if cfg == nil || cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}

	baseAttrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
		semconv.HostName(telemetry.Hostname()),
		semconv.ProcessPID(telemetry.PID()),
	}
	for key, value := range cfg.ResourceAttributes {
		if key == "" {
			continue
		}
		baseAttrs = append(baseAttrs, attribute.String(key, value))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(baseAttrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

const defaultMetricInterval = time.Minute

func metricInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultMetricInterval
	}

	return millis(d)
}
