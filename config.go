//revive:disable:line-length-limit
package telemetry

import (
	"strings"
	"time"
)

// Config configures the tracing core, its sink and its ambient OTel plumbing.
// The core treats a Config as immutable once a Registry has been built from it.
type Config struct {
	// Enabled controls whether traces are recorded at all.
	Enabled *bool `yaml:"enabled" default:"false" env:"TELEMETRY_ENABLED"`

	// ServiceName identifies the service in exported resources.
	// Maps to OTEL_SERVICE_NAME.
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`

	// Version is the service version (e.g., git commit or semantic version).
	Version string `yaml:"version" env:"OTEL_SERVICE_VERSION"`

	// Environment is the deployment environment (e.g., production, development).
	Environment string `yaml:"environment" env:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`

	// ResourceAttributes contains additional resource attributes as key=value pairs.
	ResourceAttributes map[string]string `yaml:"resourceAttributes,omitempty" env:"OTEL_RESOURCE_ATTRIBUTES"`

	// SampleRatio is the sampling ratio. Integers in [1,100] mean "ratio out of 100",
	// fractions below 1 extend the pool by powers of ten. Empty means 1 out of 100.
	SampleRatio string `yaml:"sampleRatio" env:"TELEMETRY_SAMPLE_RATIO"`

	// RunOnHosts is a regular expression matched against the local hostname.
	// Empty matches every host.
	RunOnHosts string `yaml:"runOnHosts" env:"TELEMETRY_RUN_ON_HOSTS"`

	// Override is the static value of the runtime circuit breaker.
	// A dynamic predicate can be installed with WithOverride.
	Override *bool `yaml:"override" default:"true" env:"TELEMETRY_OVERRIDE"`

	// LogInstrumentationTime records the total post-process wait on the root span.
	LogInstrumentationTime *bool `yaml:"logInstrumentationTime" default:"true" env:"TELEMETRY_LOG_INSTRUMENTATION_TIME"`

	// ErrorLog configures the logger that receives tracing-internal failures.
	ErrorLog *ErrorLogConfig `yaml:"errorLog,omitempty"`

	// Sink selects where flushed traces are delivered.
	Sink *SinkConfig `yaml:"sink,omitempty"`

	// OTLP contains OTLP exporter settings shared by the OTLP sink and metrics.
	OTLP *OTLPConfig `yaml:"otlp,omitempty"`

	// Metrics configures export of the tracing core's own metrics.
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// ErrorLogConfig configures the error logger.
type ErrorLogConfig struct {
	// Path is a file path, or "stderr"/"stdout".
	Path string `yaml:"path" env:"TELEMETRY_ERROR_LOG" default:"stderr"`

	// Level is the minimum level written. Options: "debug", "info", "warn", "error".
	Level string `yaml:"level" default:"error" validate:"omitempty,oneof=debug info warn error"`

	// Encoding is "json" or "console".
	Encoding string `yaml:"encoding" default:"json" validate:"omitempty,oneof=json console"`
}

// SinkConfig selects exactly one sink backend. When several are set the first one
// in the order LogFile, HTTPEndpoint, Exporter, NATSSubject, InMemory wins.
type SinkConfig struct {
	// LogFile appends one JSON line per trace to the given file.
	LogFile string `yaml:"logFile,omitempty" env:"TELEMETRY_SINK_LOG_FILE"`

	// HTTPEndpoint receives a JSON POST per trace. A bare host gets the "/trace" path.
	HTTPEndpoint string `yaml:"httpEndpoint,omitempty" env:"TELEMETRY_SINK_HTTP_ENDPOINT"`

	// HTTPTimeout bounds a single POST to HTTPEndpoint.
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty" env:"TELEMETRY_SINK_HTTP_TIMEOUT" default:"5s" validate:"gte=0"`

	// Exporter converts traces into OTel spans. Options: "otlp", "console", "stdout", "none".
	Exporter string `yaml:"exporter,omitempty" env:"TELEMETRY_SINK_EXPORTER" validate:"omitempty,oneof=otlp console stdout none"`

	// NATSURL is the NATS server used by the JetStream sink.
	NATSURL string `yaml:"natsURL,omitempty" env:"TELEMETRY_SINK_NATS_URL" default:"nats://127.0.0.1:4222"`

	// NATSSubject is the JetStream subject traces are published to.
	NATSSubject string `yaml:"natsSubject,omitempty" env:"TELEMETRY_SINK_NATS_SUBJECT"`

	// InMemory keeps traces in process. Intended for tests.
	InMemory *bool `yaml:"inMemory,omitempty" env:"TELEMETRY_SINK_IN_MEMORY"`
}

// IsInMemory returns true if the in-memory sink is selected.
func (c *SinkConfig) IsInMemory() bool {
	return c != nil && c.InMemory != nil && *c.InMemory
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Endpoint is the OTLP collector endpoint.
	// Maps to OTEL_EXPORTER_OTLP_ENDPOINT.
	//
	// Format depends on protocol:
	//   - gRPC: "host:port" (e.g., "localhost:4317"). Do NOT include scheme.
	//   - HTTP: Full URL with scheme (e.g., "http://localhost:4318/v1/traces").
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	// Insecure disables TLS for the OTLP connection.
	Insecure *bool `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// Headers adds custom headers to OTLP requests.
	// Avoid logging this value, as it may contain sensitive credentials.
	Headers map[string]string `yaml:"headers,omitempty" env:"OTEL_EXPORTER_OTLP_HEADERS"`

	// Protocol determines the OTLP transport protocol.
	// Options: "grpc", "http/protobuf", "http".
	Protocol string `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc" validate:"oneof=grpc http/protobuf http"`

	// Timeout is the timeout for exporter operations.
	Timeout time.Duration `yaml:"timeout" env:"OTEL_EXPORTER_OTLP_TIMEOUT" default:"10s" validate:"gte=0"`

	// Compression sets the compression algorithm for OTLP. Options: "gzip", "none".
	Compression string `yaml:"compression,omitempty" env:"OTEL_EXPORTER_OTLP_COMPRESSION" validate:"omitempty,oneof=gzip none"`
}

// IsInsecure returns true if insecure connection is enabled.
func (c *OTLPConfig) IsInsecure() bool {
	return c == nil || c.Insecure == nil || *c.Insecure
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	// Enabled controls whether metrics are exported.
	// Defaults to false (opt-in for metrics).
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter determines the metrics exporter type.
	// Options: "otlp", "console", "stdout", "none".
	Exporter string `yaml:"exporter" env:"OTEL_METRICS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint overrides OTLP.Endpoint for metrics.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`

	// Interval is the export interval for periodic metric reader.
	// Maps to OTEL_METRIC_EXPORT_INTERVAL (milliseconds if numeric).
	Interval time.Duration `yaml:"interval,omitempty" env:"OTEL_METRIC_EXPORT_INTERVAL" default:"60s" validate:"omitempty,gt=0"`
}

// IsEnabled returns true if metrics collection is enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// IsEnabled returns true if tracing is enabled.
// Defaults to false if nil.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// OverrideValue returns the configured static override. Defaults to true.
func (c *Config) OverrideValue() bool {
	return c == nil || c.Override == nil || *c.Override
}

// IsLogInstrumentationTime returns true if instrumentation time is recorded. Defaults to true.
func (c *Config) IsLogInstrumentationTime() bool {
	return c == nil || c.LogInstrumentationTime == nil || *c.LogInstrumentationTime
}

// GetSinkConfig returns the sink config, never nil.
func (c *Config) GetSinkConfig() *SinkConfig {
	if c == nil || c.Sink == nil {
		return &SinkConfig{}
	}

	return c.Sink
}

// GetOTLPConfig returns the OTLP config, never nil.
func (c *Config) GetOTLPConfig() *OTLPConfig {
	if c == nil || c.OTLP == nil {
		return &OTLPConfig{}
	}

	return c.OTLP
}

// HasSink reports whether any sink backend is configured.
func (c *SinkConfig) HasSink() bool {
	if c == nil {
		return false
	}

	return strings.TrimSpace(c.LogFile) != "" ||
		strings.TrimSpace(c.HTTPEndpoint) != "" ||
		strings.TrimSpace(c.Exporter) != "" ||
		strings.TrimSpace(c.NATSSubject) != "" ||
		c.IsInMemory()
}

// boolPtr returns a pointer to the given boolean value.
// It is useful for initializing config fields.
func boolPtr(v bool) *bool { return &v }
