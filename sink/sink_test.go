package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/telemetry"
)

type failingBackend struct {
	err   error
	panic any
}

func (f *failingBackend) Name() string { return "failing" }

func (f *failingBackend) Process(context.Context, *telemetry.Record) error {
	if f.panic != nil {
		panic(f.panic)
	}

	return f.err
}

func (f *failingBackend) Close(context.Context) error { return nil }

func boolPtr(v bool) *bool { return &v }

func sampleRecord() *telemetry.Record {
	d := int64(2000)
	return &telemetry.Record{
		ID:            "1234",
		CurrentSpanID: "11",
		Spans: []telemetry.SpanRecord{
			{
				ID:          "11",
				Name:        "GET /orders",
				StartTime:   1_000,
				StopTime:    3_000,
				Duration:    &d,
				PID:         42,
				Hostname:    "web-1",
				Annotations: []telemetry.Annotation{{Key: "user", Value: "alice", Timestamp: 1_500}},
			},
			{
				ID:           "12",
				ParentSpanID: "11",
				Name:         "db",
				StartTime:    1_200,
				StopTime:     2_000,
			},
		},
	}
}

func TestSinkLogsAndCountsFailures(t *testing.T) {
	tests := []struct {
		name    string
		backend *failingBackend
		errText string
	}{
		{"error", &failingBackend{err: errors.New("connection refused")}, "connection refused"},
		{"panic", &failingBackend{panic: "boom"}, "backend panic: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

			s := Wrap(tt.backend, zap.New(core), WithMeterProvider(mp))
			assert.NotPanics(t, func() {
				s.Process(context.Background(), sampleRecord())
			})

			require.Equal(t, 1, logs.Len())
			fields := logs.All()[0].ContextMap()
			assert.Equal(t, "failing", fields["backend"])
			assert.Equal(t, "1234", fields["trace_id"])
			assert.Equal(t, tt.errText, fields["error"])
			assert.Contains(t, fields["record"], `"id":"1234"`)
			assert.Equal(t, int64(1), failureCount(t, reader))
		})
	}
}

func TestSinkIgnoresNilRecord(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := Wrap(&failingBackend{err: errors.New("x")}, zap.New(core))
	s.Process(context.Background(), nil)
	assert.Zero(t, logs.Len())
}

func TestNewSelectsBackendByPriority(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	logFile := filepath.Join(t.TempDir(), "traces.log")

	tests := []struct {
		name     string
		sink     *telemetry.SinkConfig
		expected string
	}{
		{"log file wins", &telemetry.SinkConfig{LogFile: logFile, HTTPEndpoint: srv.URL, InMemory: boolPtr(true)}, "logfile"},
		{"http before exporter", &telemetry.SinkConfig{HTTPEndpoint: srv.URL, Exporter: "none"}, "http"},
		{"exporter before nats", &telemetry.SinkConfig{Exporter: "none", NATSSubject: "traces"}, "exporter"},
		{"nats before memory", &telemetry.SinkConfig{NATSSubject: "traces", InMemory: boolPtr(true)}, "nats"},
		{"memory", &telemetry.SinkConfig{InMemory: boolPtr(true)}, "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), &telemetry.Config{Sink: tt.sink}, nil,
				WithSpanExporter(tracetest.NewInMemoryExporter()),
				WithPublisher(&mockPublisher{}),
			)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			assert.Equal(t, tt.expected, s.Backend().Name())
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(context.Background(), &telemetry.Config{}, nil)
	require.ErrorIs(t, err, telemetry.ErrMissingSinkDevice)

	_, err = New(context.Background(), nil, nil)
	require.ErrorIs(t, err, telemetry.ErrMissingSinkDevice)

	missingDir := filepath.Join(t.TempDir(), "missing", "traces.log")
	_, err = New(context.Background(), &telemetry.Config{Sink: &telemetry.SinkConfig{LogFile: missingDir}}, nil)
	require.ErrorIs(t, err, telemetry.ErrSinkDeviceNotFound)
}

func TestFromConfigDisablesRegistryOnError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := &telemetry.Config{
		Enabled: boolPtr(true),
		Sink:    &telemetry.SinkConfig{LogFile: filepath.Join(t.TempDir(), "missing", "traces.log")},
	}

	reg, err := telemetry.NewRegistry(context.Background(), cfg,
		telemetry.WithLogger(zap.New(core)),
		telemetry.WithSinkFactory(FromConfig),
	)
	require.NoError(t, err)
	assert.False(t, reg.Runner().Enabled())
	assert.Equal(t, 1, logs.Len())
}

func TestFromConfigEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.log")
	cfg := &telemetry.Config{
		Enabled:     boolPtr(true),
		SampleRatio: "100",
		Sink:        &telemetry.SinkConfig{LogFile: path},
	}

	ctx := context.Background()
	reg, err := telemetry.NewRegistry(ctx, cfg,
		telemetry.WithSinkFactory(FromConfig),
		telemetry.WithRandIntN(func(int) int { return 0 }),
	)
	require.NoError(t, err)
	require.True(t, reg.Runner().Enabled())

	tr := reg.NewTrace(ctx)
	require.NoError(t, tr.Apply(ctx, "job", func(tr *telemetry.Trace) error {
		return tr.Annotate("k", "v")
	}))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, tr.ID(), lines[0]["trace"].(map[string]any)["id"])
}

func failureCount(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "telemetry.sink.failures" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}
