package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultPoolSize  = 100
	defaultThreshold = 1
)

// Sample is the (threshold, pool size) pair used for probabilistic admission.
// A trace is admitted when a uniform draw from [0, PoolSize) is <= Threshold.
type Sample struct {
	Threshold int
	PoolSize  int
}

// DefaultSample is 1 out of 100.
var DefaultSample = Sample{Threshold: defaultThreshold, PoolSize: defaultPoolSize}

// ParseSampleRatio converts a configured ratio into a Sample.
//
// Integers are read as "ratio out of 100" and clamp to 100. Fractions below 1
// scale the pool by powers of ten until the ratio is at least 1, so "0.1"
// becomes 1 out of 1000. An empty ratio yields DefaultSample.
func ParseSampleRatio(ratio string) (Sample, error) {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return DefaultSample, nil
	}

	if n, err := strconv.Atoi(ratio); err == nil {
		return SampleFromInt(n)
	}

	f, err := strconv.ParseFloat(ratio, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %q", ErrInvalidSampleRatio, ratio)
	}

	return SampleFromFloat(f)
}

// SampleFromInt returns the Sample for an integer ratio out of 100. Zero and
// negative ratios are rejected.
func SampleFromInt(ratio int) (Sample, error) {
	if ratio <= 0 {
		return Sample{}, fmt.Errorf("%w: %d", ErrInvalidSampleRatio, ratio)
	}
	if ratio >= defaultPoolSize {
		return Sample{Threshold: defaultPoolSize, PoolSize: defaultPoolSize}, nil
	}

	return Sample{Threshold: ratio, PoolSize: defaultPoolSize}, nil
}

// SampleFromFloat returns the Sample for a fractional ratio out of 100.
func SampleFromFloat(ratio float64) (Sample, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return Sample{}, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, ratio)
	}
	if ratio >= defaultPoolSize {
		return Sample{Threshold: defaultPoolSize, PoolSize: defaultPoolSize}, nil
	}

	pool := defaultPoolSize
	for ratio < 1 {
		if pool > math.MaxInt/10 {
			return Sample{}, fmt.Errorf("%w: %v is too small", ErrInvalidSampleRatio, ratio)
		}
		ratio *= 10
		pool *= 10
	}

	return Sample{Threshold: int(math.Round(ratio)), PoolSize: pool}, nil
}

// String renders the sample as "threshold/pool".
func (s Sample) String() string {
	return strconv.Itoa(s.Threshold) + "/" + strconv.Itoa(s.PoolSize)
}
