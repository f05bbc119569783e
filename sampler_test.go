package telemetry

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleRatio(t *testing.T) {
	tests := []struct {
		name     string
		ratio    string
		expected Sample
	}{
		{"empty", "", Sample{1, 100}},
		{"whitespace", "  ", Sample{1, 100}},
		{"one", "1", Sample{1, 100}},
		{"fifty", "50", Sample{50, 100}},
		{"ninety nine", "99", Sample{99, 100}},
		{"hundred", "100", Sample{100, 100}},
		{"above hundred", "250", Sample{100, 100}},
		{"tenth", "0.1", Sample{1, 1000}},
		{"hundredth", "0.01", Sample{1, 10000}},
		{"half", "0.5", Sample{5, 1000}},
		{"round half up", "0.25", Sample{3, 1000}},
		{"fraction above one", "2.5", Sample{3, 100}},
		{"float hundred", "100.0", Sample{100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSampleRatio(tt.ratio)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestParseSampleRatioInvalid(t *testing.T) {
	for _, ratio := range []string{"abc", "1/2", "0", "-5", "-0.1", "NaN", "Inf", "0.0"} {
		t.Run(ratio, func(t *testing.T) {
			_, err := ParseSampleRatio(ratio)
			require.ErrorIs(t, err, ErrInvalidSampleRatio)
		})
	}
}

func TestParseSampleRatioIntegerGrid(t *testing.T) {
	for r := 1; r < 100; r++ {
		s, err := ParseSampleRatio(strconv.Itoa(r))
		require.NoError(t, err)
		assert.Equal(t, Sample{Threshold: r, PoolSize: 100}, s)
	}
}

func TestSampleFromFloatScaling(t *testing.T) {
	ratios := []float64{0.9, 0.3, 0.07, 0.004, 0.0002}
	for _, r := range ratios {
		s, err := SampleFromFloat(r)
		require.NoError(t, err)

		k := 0
		scaled := r
		for scaled < 1 {
			scaled *= 10
			k++
		}
		assert.Equal(t, 100*int(math.Pow10(k)), s.PoolSize, "ratio %v", r)
		assert.Equal(t, int(math.Round(scaled)), s.Threshold, "ratio %v", r)
	}

	// The pool must stay representable as an int.
	for _, ratio := range []string{"0.00000000000000001", "0.000000000000000001", "1e-30"} {
		_, err := ParseSampleRatio(ratio)
		require.ErrorIs(t, err, ErrInvalidSampleRatio, "ratio %s", ratio)
	}
	s, err := SampleFromFloat(1e-15)
	require.NoError(t, err)
	assert.Positive(t, s.PoolSize)
}

func TestSampleFromIntRejectsNonPositive(t *testing.T) {
	for _, r := range []int{0, -1, -100} {
		_, err := SampleFromInt(r)
		require.ErrorIs(t, err, ErrInvalidSampleRatio, "ratio %d", r)
	}
}

func TestSampleString(t *testing.T) {
	assert.Equal(t, "1/1000", Sample{1, 1000}.String())
}
