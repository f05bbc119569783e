package telemetry

import (
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SpanState is the lifecycle state of a Span.
type SpanState int

const (
	// SpanCreated is the state of a span that has not been started.
	SpanCreated SpanState = iota
	// SpanStarted is the state of an in-progress span.
	SpanStarted
	// SpanStopped is terminal.
	SpanStopped
)

func (s SpanState) String() string {
	switch s {
	case SpanCreated:
		return "created"
	case SpanStarted:
		return "started"
	case SpanStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Annotator is implemented by Span and Trace. A Trace forwards to its current span.
type Annotator interface {
	Annotate(key, value string) error
	ForceAnnotate(key, value string) error
	PostProcess(name string, task Task, opts ...ProcessOption) error
}

var (
	_ Annotator = (*Span)(nil)
	_ Annotator = (*Trace)(nil)
)

// Span is one timed operation within a trace.
//
// A Span is not safe for concurrent mutation. Post-process tasks run
// concurrently but only touch the span when it stops.
type Span struct {
	id          uint64
	parentID    string
	traceID     string
	name        string
	annotations []Annotation
	processors  []*processor
	startTime   int64
	stopTime    int64
	state       SpanState
	pid         int
	hostname    string

	// processingTime is the total time stop spent waiting on processors.
	processingTime time.Duration

	logger  *zap.Logger
	metrics *instruments
	onStop  func(*Span)
}

// SpanOption configures a standalone Span.
type SpanOption func(*Span)

// WithSpanName sets the initial span name.
func WithSpanName(name string) SpanOption {
	return func(s *Span) {
		s.name = name
	}
}

// WithSpanParent sets the parent span id. Empty means root.
func WithSpanParent(parentID string) SpanOption {
	return func(s *Span) {
		s.parentID = parentID
	}
}

// WithSpanTraceID sets the id of the owning trace.
func WithSpanTraceID(traceID string) SpanOption {
	return func(s *Span) {
		s.traceID = traceID
	}
}

// WithSpanLogger sets the logger that receives post-process failures.
func WithSpanLogger(l *zap.Logger) SpanOption {
	return func(s *Span) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSpan creates a span in the Created state.
func NewSpan(opts ...SpanOption) *Span {
	s := &Span{
		id:       newSpanID(),
		pid:      PID(),
		hostname: Hostname(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// The accessors and mutators below accept a nil *Span, which is what an
// inactive trace hands to ApplyNewSpan callbacks. Getters return zero values
// and mutators do nothing.

// ID returns the span id. It never changes.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}

	return s.id
}

// IDString returns the span id in decimal form, as used in headers, or "".
func (s *Span) IDString() string {
	if s == nil {
		return ""
	}

	return strconv.FormatUint(s.id, 10)
}

// ParentID returns the parent span id, or "" for a root span.
func (s *Span) ParentID() string {
	if s == nil {
		return ""
	}

	return s.parentID
}

// TraceID returns the id of the owning trace.
func (s *Span) TraceID() string {
	if s == nil {
		return ""
	}

	return s.traceID
}

// Name returns the span name.
func (s *Span) Name() string {
	if s == nil {
		return ""
	}

	return s.name
}

// IsRoot reports whether the span has no parent.
func (s *Span) IsRoot() bool { return s != nil && s.parentID == "" }

// State returns the lifecycle state.
func (s *Span) State() SpanState {
	if s == nil {
		return SpanCreated
	}

	return s.state
}

// InProgress reports whether the span is started and not yet stopped.
func (s *Span) InProgress() bool { return s != nil && s.state == SpanStarted }

// Stopped reports whether the span reached its terminal state.
func (s *Span) Stopped() bool { return s != nil && s.state == SpanStopped }

// StartTime returns the start time in Unix nanoseconds, or 0 if unset.
func (s *Span) StartTime() int64 {
	if s == nil {
		return 0
	}

	return s.startTime
}

// StopTime returns the stop time in Unix nanoseconds, or 0 if unset.
func (s *Span) StopTime() int64 {
	if s == nil {
		return 0
	}

	return s.stopTime
}

// Annotations returns a copy of the recorded annotations in order.
func (s *Span) Annotations() []Annotation {
	if s == nil {
		return nil
	}
	out := make([]Annotation, len(s.annotations))
	copy(out, s.annotations)

	return out
}

// SetName renames the span.
func (s *Span) SetName(name string) error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	s.name = name

	return nil
}

// Start marks the span in progress. The name is applied only if none is set.
// Starting an in-progress span keeps its original start time.
func (s *Span) Start(name string) error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	if s.name == "" {
		s.name = name
	}
	if s.state == SpanCreated {
		s.startTime = time.Now().UnixNano()
		s.state = SpanStarted
	}

	return nil
}

// Stop records the stop time, joins every post-process task in registration
// order and appends their annotations. Task failures never surface here.
func (s *Span) Stop() error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	s.stopTime = time.Now().UnixNano()

	for _, p := range s.processors {
		a, wait, ok := p.resolve(s.logger, s.metrics)
		s.processingTime += wait
		if ok {
			s.annotations = append(s.annotations, a)
		}
	}
	s.processors = nil
	s.state = SpanStopped

	if s.onStop != nil {
		s.onStop(s)
	}

	return nil
}

// Annotate appends a key/value annotation. Empty values are ignored.
func (s *Span) Annotate(key, value string) error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	if value == "" {
		return nil
	}
	s.annotations = append(s.annotations, newAnnotation(key, value))

	return nil
}

// ForceAnnotate appends an annotation even when value is empty.
func (s *Span) ForceAnnotate(key, value string) error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	s.annotations = append(s.annotations, newAnnotation(key, value))

	return nil
}

// PostProcess starts task on its own goroutine. Its result is recorded under
// name when the span stops.
func (s *Span) PostProcess(name string, task Task, opts ...ProcessOption) error {
	if s == nil {
		return nil
	}
	if s.state == SpanStopped {
		return ErrSpanAlreadyStopped
	}
	s.processors = append(s.processors, startProcessor(name, task, opts...))

	return nil
}

// Duration returns stop minus start in nanoseconds, or NaN unless the span
// was both started and stopped.
func (s *Span) Duration() float64 {
	if s == nil || s.state != SpanStopped || s.startTime == 0 {
		return math.NaN()
	}

	return float64(s.stopTime - s.startTime)
}

// Apply starts the span, calls fn and stops the span. Stop runs even if fn
// panics; fn's error is returned after stop.
func (s *Span) Apply(name string, fn func(*Span) error) (err error) {
	if s == nil {
		if fn == nil {
			return nil
		}

		return fn(nil)
	}
	if err := s.Start(name); err != nil {
		return err
	}
	defer func() {
		if stopErr := s.Stop(); err == nil {
			err = stopErr
		}
	}()

	if fn == nil {
		return nil
	}

	return fn(s)
}
