package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SinkFactory builds the sink for a Registry. It is called once by NewRegistry.
type SinkFactory func(ctx context.Context, cfg *Config, logger *zap.Logger) (Sink, error)

// Registry holds the shared configuration, the admission controller and the
// sink, and creates traces. The current trace of a request lives in its
// context.Context, so one Registry serves any number of concurrent requests.
type Registry struct {
	cfg     *Config
	runner  *Runner
	sink    Sink
	logger  *zap.Logger
	metrics *instruments
}

type options struct {
	sink        Sink
	sinkFactory SinkFactory
	logger      *zap.Logger
	mp          metric.MeterProvider
	override    *Override
	hostname    string
	randIntN    func(int) int
}

// Option configures a Registry.
type Option func(*options)

// WithSink sets the sink directly.
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithSinkFactory builds the sink from the config. A factory error disables
// tracing instead of failing NewRegistry.
func WithSinkFactory(f SinkFactory) Option {
	return func(o *options) {
		o.sinkFactory = f
	}
}

// WithLogger sets the error logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider sets the meter provider for the core's own metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// WithOverride replaces the static override from the config, typically with
// a DynamicOverride.
func WithOverride(ov Override) Option {
	return func(o *options) {
		o.override = &ov
	}
}

// WithHostname overrides the hostname used for host matching.
func WithHostname(hostname string) Option {
	return func(o *options) {
		o.hostname = hostname
	}
}

// WithRandIntN replaces the sampling random source. fn must return a value in [0, n).
func WithRandIntN(fn func(int) int) Option {
	return func(o *options) {
		o.randIntN = fn
	}
}

// NewRegistry creates a Registry from cfg.
//
// An invalid sample ratio or host pattern is returned as an error. A missing
// or failing sink is logged and leaves the registry permanently off, so the
// host application keeps serving.
func NewRegistry(ctx context.Context, cfg *Config, opts ...Option) (*Registry, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	sample, err := ParseSampleRatio(cfg.SampleRatio)
	if err != nil {
		return nil, err
	}

	override := FixedOverride(cfg.OverrideValue())
	if o.override != nil {
		override = *o.override
	}

	m := newInstruments(o.mp)
	runner, err := NewRunner(RunnerConfig{
		Enabled:    cfg.IsEnabled(),
		Sample:     sample,
		RunOnHosts: cfg.RunOnHosts,
		Override:   override,
	},
		WithRunnerLogger(o.logger),
		WithRunnerHostname(o.hostname),
		WithRunnerRandIntN(o.randIntN),
		withRunnerInstruments(m),
	)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		cfg:     cfg,
		runner:  runner,
		sink:    o.sink,
		logger:  o.logger,
		metrics: m,
	}

	if r.sink == nil && o.sinkFactory != nil && runner.Enabled() {
		s, err := o.sinkFactory(ctx, cfg, o.logger)
		if err != nil {
			o.logger.Error("telemetry: sink construction failed, tracing disabled", zap.Error(err))
			runner.Off()
		} else {
			r.sink = s
		}
	}
	if r.sink == nil && runner.Enabled() {
		o.logger.Error("telemetry: no sink configured, tracing disabled", zap.Error(ErrMissingSinkDevice))
		runner.Off()
	}

	return r, nil
}

// Runner returns the admission controller.
func (r *Registry) Runner() *Runner { return r.runner }

// Config returns the configuration the registry was built from.
func (r *Registry) Config() *Config { return r.cfg }

// Logger returns the error logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

type traceOptions struct {
	traceID        string
	parentSpanID   string
	name           string
	basic          bool
	requireHeaders bool
}

// TraceOption configures NewTrace and Fetch.
type TraceOption func(*traceOptions)

// WithTraceID continues an existing trace.
func WithTraceID(id string) TraceOption {
	return func(o *traceOptions) {
		o.traceID = id
	}
}

// WithParentSpanID sets the caller's span as parent of the root span.
func WithParentSpanID(id string) TraceOption {
	return func(o *traceOptions) {
		o.parentSpanID = id
	}
}

// FromHeaders applies both inbound headers.
func FromHeaders(h Headers) TraceOption {
	return func(o *traceOptions) {
		o.traceID = h.TraceID
		o.parentSpanID = h.SpanID
	}
}

// WithName names the root span.
func WithName(name string) TraceOption {
	return func(o *traceOptions) {
		o.name = name
	}
}

// BasicMode admits with Runner.RunBasic, skipping host matching and sampling.
// Used where those checks carry no meaning, such as anonymous worker pools.
func BasicMode() TraceOption {
	return func(o *traceOptions) {
		o.basic = true
	}
}

// RequireHeaders leaves the trace inactive unless inbound headers are present.
func RequireHeaders() TraceOption {
	return func(o *traceOptions) {
		o.requireHeaders = true
	}
}

// NewTrace evaluates admission once and returns a new Trace. When admission
// fails the trace is inactive and all of its methods are no-ops.
func (r *Registry) NewTrace(ctx context.Context, opts ...TraceOption) *Trace {
	o := traceOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Trace{
		sink:                   r.sink,
		logger:                 r.logger,
		metrics:                r.metrics,
		logInstrumentationTime: r.cfg.IsLogInstrumentationTime(),
	}

	t.active = r.admit(o)
	r.metrics.traceStarted(ctx, t.active)
	if !t.active {
		return t
	}

	switch {
	case o.traceID != "" && o.parentSpanID == "":
		t.dirty = true
		t.reason = reasonMissingParent
	case o.traceID == "" && o.parentSpanID != "":
		t.dirty = true
		t.reason = reasonMissingTraceID
	}

	t.id = o.traceID
	if t.id == "" {
		t.id = newTraceID()
	}

	root := t.newSpan(o.parentSpanID)
	root.name = o.name
	t.spans = []*Span{root}

	return t
}

func (r *Registry) admit(o traceOptions) bool {
	if o.requireHeaders && o.traceID == "" && o.parentSpanID == "" {
		return false
	}
	if o.basic {
		return r.runner.RunBasic()
	}

	return r.runner.Run()
}

// Fetch returns the live trace stored in ctx, or creates one with opts and
// stores it in the returned context.
func (r *Registry) Fetch(ctx context.Context, opts ...TraceOption) (context.Context, *Trace) {
	if t := Current(ctx); t != nil {
		return ctx, t
	}
	t := r.NewTrace(ctx, opts...)

	return ContextWithTrace(ctx, t), t
}

// Close releases the sink when it holds resources, such as an open file or
// an exporter with buffered spans.
func (r *Registry) Close(ctx context.Context) error {
	if c, ok := r.sink.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}

	return nil
}

// Headers returns the outbound headers of the trace in ctx, like CurrentHeaders.
func (r *Registry) Headers(ctx context.Context) Headers {
	return CurrentHeaders(ctx)
}

// String describes the registry for debugging.
func (r *Registry) String() string {
	return fmt.Sprintf("telemetry.Registry{enabled=%t, sample=%s}", r.runner.Enabled(), r.runner.SampleConfig())
}

type traceKey struct{}

// ContextWithTrace returns a copy of ctx carrying t.
func ContextWithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// Current returns the trace carried by ctx. A flushed trace is treated as
// absent so the next Fetch starts fresh. An inactive trace is returned as is,
// so a request keeps the admission decision made when it was fetched.
func Current(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	if t == nil || t.flushed {
		return nil
	}

	return t
}

// CurrentHeaders returns the outbound headers of the trace in ctx.
func CurrentHeaders(ctx context.Context) Headers {
	if t := Current(ctx); t != nil {
		return t.Headers()
	}

	return Headers{}
}

// TraceID returns the id of the trace in ctx, or "".
func TraceID(ctx context.Context) string {
	if t := Current(ctx); t != nil {
		return t.ID()
	}

	return ""
}

// SpanID returns the id of the current span of the trace in ctx, or "".
func SpanID(ctx context.Context) string {
	return CurrentHeaders(ctx).SpanID
}

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide registry. Until SetDefault is called it
// is a disabled registry that produces inactive traces.
func Default() *Registry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}
	r, _ := NewRegistry(context.Background(), &Config{})
	if defaultRegistry.CompareAndSwap(nil, r) {
		return r
	}

	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry. A nil r resets it to the
// disabled default.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}

// ResetDefault restores the disabled default registry.
func ResetDefault() {
	SetDefault(nil)
}
