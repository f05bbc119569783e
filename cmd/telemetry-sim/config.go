package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/arloliu/fuda"

	"github.com/arloliu/telemetry"
)

// Config holds all CLI configuration.
// Uses fuda struct tags for defaults and env var binding.
type Config struct {
	// ConfigFile is a telemetry config file. Flags below override it.
	ConfigFile  string `yaml:"config" env:"TELEMETRY_CONFIG"`
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`
	SampleRatio string `yaml:"sampleRatio" default:"100"`

	// Sink settings
	LogFile      string `yaml:"logFile"`
	HTTPEndpoint string `yaml:"httpEndpoint"`
	Exporter     string `yaml:"exporter" default:"console"`
	Endpoint     string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	UseHTTP      bool   `yaml:"http" default:"false"`
	Insecure     *bool  `yaml:"insecure" default:"true" env:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Scenario settings
	Scenario     string `yaml:"scenario" default:"payment"`
	ScenarioFile string `yaml:"scenarioFile"`

	// Quick mode
	Count int `yaml:"count" default:"10"`

	// Continuous mode
	Duration  time.Duration `yaml:"duration" default:"1m"`
	Rate      float64       `yaml:"rate" default:"1"`
	Jitter    int           `yaml:"jitter" default:"20"`
	TimeScale float64       `yaml:"timeScale" default:"1"`
}

// IsInsecure returns the insecure value, defaulting to true if nil.
func (c *Config) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}

	return *c.Insecure
}

func newConfig() *Config {
	cfg := &Config{}
	// Apply defaults from struct tags (fuda handles time.Duration and *bool parsing)
	_ = fuda.SetDefaults(cfg)

	return cfg
}

func (c *Config) bindCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Telemetry config file (YAML or JSON)")
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Override service name")
	fs.StringVar(&c.SampleRatio, "sample", c.SampleRatio, "Sample ratio")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Append traces to this file")
	fs.StringVar(&c.HTTPEndpoint, "http-endpoint", c.HTTPEndpoint, "POST traces to this endpoint")
	fs.StringVar(&c.Exporter, "exporter", c.Exporter, "Span exporter: otlp, console, none")
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "OTLP endpoint")
	fs.BoolVar(&c.UseHTTP, "http", c.UseHTTP, "Use OTLP/HTTP instead of gRPC")
	fs.Func("insecure", "Skip TLS verification (default: true)", func(s string) error {
		val := s == "true" || s == "1"
		c.Insecure = &val

		return nil
	})
	fs.StringVar(&c.Scenario, "scenario", c.Scenario, "Scenario name")
	fs.StringVar(&c.ScenarioFile, "scenario-file", c.ScenarioFile, "Custom YAML scenario file")
	fs.Float64Var(&c.TimeScale, "time-scale", c.TimeScale, "Multiplier for simulated durations, 0 disables sleeping")
}

func (c *Config) applyEnvOverrides() {
	// fuda.LoadEnv reads env vars based on struct tags
	_ = fuda.LoadEnv(c)
}

// telemetryConfig builds the telemetry config for the engine. Tracing is
// always enabled. Sink flags replace the file's sink, and the exporter flag
// is used only when nothing else selects a sink.
func (c *Config) telemetryConfig() (*telemetry.Config, error) {
	var (
		tc  *telemetry.Config
		err error
	)
	if c.ConfigFile != "" {
		tc, err = telemetry.LoadConfig(c.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load telemetry config: %w", err)
		}
	} else {
		tc = &telemetry.Config{}
		if err := fuda.SetDefaults(tc); err != nil {
			return nil, fmt.Errorf("failed to apply telemetry defaults: %w", err)
		}
	}

	enabled := true
	tc.Enabled = &enabled
	if c.ServiceName != "" {
		tc.ServiceName = c.ServiceName
	}
	if tc.ServiceName == "" {
		tc.ServiceName = "telemetry-sim"
	}
	if c.SampleRatio != "" {
		tc.SampleRatio = c.SampleRatio
	}

	if tc.Sink == nil {
		tc.Sink = &telemetry.SinkConfig{}
	}
	if c.LogFile != "" {
		tc.Sink.LogFile = c.LogFile
	}
	if c.HTTPEndpoint != "" {
		tc.Sink.HTTPEndpoint = c.HTTPEndpoint
	}
	if !tc.Sink.HasSink() {
		tc.Sink.Exporter = c.Exporter
	}

	if tc.OTLP == nil {
		tc.OTLP = &telemetry.OTLPConfig{Endpoint: "localhost:4317", Protocol: "grpc"}
	}
	if c.Endpoint != "" {
		tc.OTLP.Endpoint = c.Endpoint
	}
	if c.UseHTTP {
		tc.OTLP.Protocol = "http/protobuf"
	}
	insecure := c.IsInsecure()
	tc.OTLP.Insecure = &insecure

	return tc, nil
}
