package telemetry

import (
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Override is the runtime circuit breaker value: either a fixed boolean or a
// predicate evaluated on every admission decision.
type Override struct {
	fixed     bool
	predicate func() (bool, error)
}

// FixedOverride returns an Override that always evaluates to v.
func FixedOverride(v bool) Override {
	return Override{fixed: v}
}

// DynamicOverride returns an Override that calls fn on every evaluation.
// A nil fn is equivalent to FixedOverride(false).
func DynamicOverride(fn func() (bool, error)) Override {
	if fn == nil {
		return FixedOverride(false)
	}

	return Override{predicate: fn}
}

// IsDynamic reports whether the override is a predicate.
func (o Override) IsDynamic() bool {
	return o.predicate != nil
}

// RunnerConfig holds the static admission settings.
type RunnerConfig struct {
	Enabled    bool
	Sample     Sample
	RunOnHosts string
	Override   Override
}

// Runner is the admission controller. It combines the enabled flag, the host
// filter, the sampling test and the override into a single run decision.
//
// The override may be swapped while traces are in flight; every evaluation
// reads the latest value.
type Runner struct {
	enabled     bool
	sample      Sample
	hostPattern *regexp.Regexp
	hostname    string
	randIntN    func(int) int
	logger      *zap.Logger
	metrics     *instruments

	off      *atomic.Bool
	override atomic.Value
}

type runnerOptions struct {
	hostname string
	randIntN func(int) int
	logger   *zap.Logger
	mp       metric.MeterProvider
	metrics  *instruments
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

// WithRunnerLogger sets the logger that receives override failures.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.logger = l
	}
}

// WithRunnerHostname overrides the hostname used for host matching.
func WithRunnerHostname(hostname string) RunnerOption {
	return func(o *runnerOptions) {
		o.hostname = hostname
	}
}

// WithRunnerRandIntN replaces the random source used by Sample.
// fn must return a value in [0, n).
func WithRunnerRandIntN(fn func(int) int) RunnerOption {
	return func(o *runnerOptions) {
		o.randIntN = fn
	}
}

// WithRunnerMeterProvider sets the meter provider for override failure counts.
func WithRunnerMeterProvider(mp metric.MeterProvider) RunnerOption {
	return func(o *runnerOptions) {
		o.mp = mp
	}
}

func withRunnerInstruments(m *instruments) RunnerOption {
	return func(o *runnerOptions) {
		o.metrics = m
	}
}

// NewRunner creates a Runner. It returns ErrInvalidHostPattern if
// cfg.RunOnHosts does not compile.
func NewRunner(cfg RunnerConfig, opts ...RunnerOption) (*Runner, error) {
	o := runnerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.randIntN == nil {
		o.randIntN = randIntN
	}
	if o.hostname == "" {
		o.hostname = Hostname()
	}
	if o.metrics == nil {
		o.metrics = newInstruments(o.mp)
	}

	r := &Runner{
		enabled:  cfg.Enabled,
		sample:   cfg.Sample,
		hostname: o.hostname,
		randIntN: o.randIntN,
		logger:   o.logger,
		metrics:  o.metrics,
		off:      atomic.NewBool(false),
	}
	if r.sample.PoolSize <= 0 {
		r.sample = DefaultSample
	}

	if cfg.RunOnHosts != "" {
		re, err := regexp.Compile(cfg.RunOnHosts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidHostPattern, err)
		}
		r.hostPattern = re
	}
	r.override.Store(cfg.Override)

	return r, nil
}

// Enabled reports the configured flag, unless the runner was forced off.
func (r *Runner) Enabled() bool {
	return r.enabled && !r.off.Load()
}

// MatchingHost reports whether the local hostname matches the configured pattern.
func (r *Runner) MatchingHost() bool {
	if !r.Enabled() {
		return false
	}
	if r.hostPattern == nil {
		return true
	}

	return r.hostPattern.MatchString(r.hostname)
}

// Sample draws from the sampling pool.
// The draw wins when it is <= Threshold, so Threshold+1 outcomes out of
// PoolSize are admitted.
func (r *Runner) Sample() bool {
	if !r.Enabled() {
		return false
	}

	return r.randIntN(r.sample.PoolSize) <= r.sample.Threshold
}

// Override evaluates the circuit breaker. A predicate that fails or panics
// is logged and evaluates to false.
func (r *Runner) Override() bool {
	if !r.Enabled() {
		return false
	}

	o := r.CurrentOverride()
	if !o.IsDynamic() {
		return o.fixed
	}

	return r.evalPredicate(o.predicate)
}

// CurrentOverride returns the stored override without evaluating it.
func (r *Runner) CurrentOverride() Override {
	o, _ := r.override.Load().(Override)

	return o
}

// SetOverride replaces the circuit breaker. Safe for concurrent use.
func (r *Runner) SetOverride(o Override) {
	r.override.Store(o)
}

// RunBasic is the cheap gate that ignores host matching and sampling.
func (r *Runner) RunBasic() bool {
	return r.Enabled() && r.Override()
}

// Run reports whether a new trace should be recorded.
func (r *Runner) Run() bool {
	return r.RunBasic() && r.MatchingHost() && r.Sample()
}

// Off force-disables the runner. The stored override is kept.
func (r *Runner) Off() {
	r.off.Store(true)
}

// On lifts a previous Off.
func (r *Runner) On() {
	r.off.Store(false)
}

// SampleConfig returns the sampling pair in use.
func (r *Runner) SampleConfig() Sample {
	return r.sample
}

func (r *Runner) evalPredicate(fn func() (bool, error)) (result bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.overrideFailed(fmt.Errorf("panic: %v", rec))
			result = false
		}
	}()

	ok, err := fn()
	if err != nil {
		r.overrideFailed(err)

		return false
	}

	return ok
}

func (r *Runner) overrideFailed(err error) {
	r.logger.Error("telemetry: override evaluation failed, tracing disabled for this decision", zap.Error(err))
	r.metrics.overrideFailed()
}
