package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixedRand(v int) func(int) int {
	return func(int) int { return v }
}

func newTestRunner(t *testing.T, cfg RunnerConfig, opts ...RunnerOption) *Runner {
	t.Helper()

	r, err := NewRunner(cfg, opts...)
	require.NoError(t, err)

	return r
}

func TestRunnerDisabled(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{
		Enabled:  false,
		Sample:   Sample{100, 100},
		Override: FixedOverride(true),
	})

	assert.False(t, r.Enabled())
	assert.False(t, r.MatchingHost())
	assert.False(t, r.Sample())
	assert.False(t, r.Override())
	assert.False(t, r.RunBasic())
	assert.False(t, r.Run())
}

func TestRunnerEnabled(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{
		Enabled:  true,
		Sample:   Sample{1, 100},
		Override: FixedOverride(true),
	}, WithRunnerRandIntN(fixedRand(0)))

	assert.True(t, r.Enabled())
	assert.True(t, r.MatchingHost())
	assert.True(t, r.Sample())
	assert.True(t, r.Override())
	assert.True(t, r.RunBasic())
	assert.True(t, r.Run())
}

func TestRunnerSampleBoundary(t *testing.T) {
	tests := []struct {
		name     string
		draw     int
		expected bool
	}{
		{"below threshold", 0, true},
		{"at threshold", 5, true},
		{"above threshold", 6, false},
		{"top of pool", 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(t, RunnerConfig{
				Enabled:  true,
				Sample:   Sample{5, 100},
				Override: FixedOverride(true),
			}, WithRunnerRandIntN(fixedRand(tt.draw)))
			assert.Equal(t, tt.expected, r.Sample())
		})
	}
}

func TestRunnerSamplePoolPassedToRand(t *testing.T) {
	var got int
	r := newTestRunner(t, RunnerConfig{
		Enabled: true,
		Sample:  Sample{1, 1000},
	}, WithRunnerRandIntN(func(n int) int {
		got = n
		return 0
	}))

	r.Sample()
	assert.Equal(t, 1000, got)
}

func TestRunnerZeroSampleUsesDefault(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{Enabled: true})
	assert.Equal(t, DefaultSample, r.SampleConfig())
}

func TestRunnerMatchingHost(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		hostname string
		expected bool
	}{
		{"no pattern", "", "anything", true},
		{"match", "^web-\\d+$", "web-12", true},
		{"no match", "^web-", "worker-1", false},
		{"partial match", "prod", "api.prod.internal", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(t, RunnerConfig{
				Enabled:    true,
				RunOnHosts: tt.pattern,
				Override:   FixedOverride(true),
			}, WithRunnerHostname(tt.hostname), WithRunnerRandIntN(fixedRand(0)))
			assert.Equal(t, tt.expected, r.MatchingHost())
			assert.Equal(t, tt.expected, r.Run())
		})
	}
}

func TestRunnerInvalidHostPattern(t *testing.T) {
	_, err := NewRunner(RunnerConfig{Enabled: true, RunOnHosts: "web-("})
	require.ErrorIs(t, err, ErrInvalidHostPattern)
}

func TestRunnerFixedOverrideFalse(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{
		Enabled:  true,
		Override: FixedOverride(false),
	}, WithRunnerRandIntN(fixedRand(0)))

	assert.False(t, r.Override())
	assert.False(t, r.RunBasic())
	assert.False(t, r.Run())
	assert.True(t, r.Sample())
}

func TestRunnerDynamicOverride(t *testing.T) {
	calls := 0
	r := newTestRunner(t, RunnerConfig{
		Enabled: true,
		Override: DynamicOverride(func() (bool, error) {
			calls++
			return calls%2 == 1, nil
		}),
	})

	assert.True(t, r.Override())
	assert.False(t, r.Override())
	assert.True(t, r.Override())
	assert.Equal(t, 3, calls)
}

func TestRunnerDynamicOverrideNilPredicate(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{Enabled: true, Override: DynamicOverride(nil)})
	assert.False(t, r.CurrentOverride().IsDynamic())
	assert.False(t, r.Override())
}

func TestRunnerDynamicOverrideFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (bool, error)
	}{
		{"error", func() (bool, error) { return true, errors.New("redis unavailable") }},
		{"panic", func() (bool, error) { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

			r := newTestRunner(t, RunnerConfig{
				Enabled:  true,
				Override: DynamicOverride(tt.fn),
			},
				WithRunnerLogger(zap.New(core)),
				WithRunnerMeterProvider(mp),
				WithRunnerRandIntN(fixedRand(0)),
			)

			assert.NotPanics(t, func() {
				assert.False(t, r.Override())
			})
			assert.False(t, r.Run())
			assert.Equal(t, 2, logs.Len())
			assert.Equal(t, int64(2), counterValue(t, reader, "telemetry.override.failures"))
		})
	}
}

func TestRunnerOffKeepsOverride(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{
		Enabled:  true,
		Override: FixedOverride(true),
	}, WithRunnerRandIntN(fixedRand(0)))

	r.Off()
	assert.False(t, r.Enabled())
	assert.False(t, r.Run())
	assert.False(t, r.Override())
	assert.True(t, r.CurrentOverride().fixed)

	r.On()
	assert.True(t, r.Run())
}

func TestRunnerSetOverrideConcurrent(t *testing.T) {
	r := newTestRunner(t, RunnerConfig{
		Enabled:  true,
		Override: FixedOverride(true),
	}, WithRunnerRandIntN(fixedRand(0)))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.SetOverride(FixedOverride(i%2 == 0))
		}()
		go func() {
			defer wg.Done()
			_ = r.Run()
		}()
	}
	wg.Wait()

	r.SetOverride(FixedOverride(false))
	assert.False(t, r.Run())
}

// counterValue sums an Int64 sum metric across all data points.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}
